package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

type ReputationService struct {
	l *Ledger
}

type FeedbackInput struct {
	Submitter         common.Address
	AgentID           uint64
	Kind              domain.FeedbackKind
	Score             int64
	Comment           string
	ExternalReference string
}

// SubmitFeedback records feedback and folds its score into the agent's
// running total. Anyone may submit, any number of times, and the agent id is
// not checked against the identity registry: scores are only as trustworthy
// as the gateway in front of this call.
func (s *ReputationService) SubmitFeedback(ctx context.Context, in FeedbackInput) (domain.FeedbackRecord, error) {
	if !in.Kind.Valid() {
		return domain.FeedbackRecord{}, fmt.Errorf("%w: %q", domain.ErrInvalidFeedbackKind, in.Kind)
	}
	if in.Score < domain.MinFeedbackScore || in.Score > domain.MaxFeedbackScore {
		return domain.FeedbackRecord{}, fmt.Errorf("%w: %d", domain.ErrScoreOutOfRange, in.Score)
	}

	var out domain.FeedbackRecord
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		var err error
		out, err = tx.Reputation().CreateFeedback(ctx, domain.FeedbackRecord{
			AgentID:           in.AgentID,
			Submitter:         in.Submitter,
			Kind:              in.Kind,
			Score:             in.Score,
			Comment:           in.Comment,
			ExternalReference: in.ExternalReference,
			CreatedAt:         rec.now,
		})
		if err != nil {
			return err
		}

		state, err := tx.Reputation().GetReputation(ctx, in.AgentID)
		if err != nil {
			return err
		}
		state.AgentID = in.AgentID
		state.TotalScore += in.Score
		state.FeedbackCount++
		if err := tx.Reputation().SaveReputation(ctx, state); err != nil {
			return err
		}

		rec.emit(domain.EventFeedbackSubmitted, ptr(in.AgentID), nil, ptr(out.ID), out)
		rec.emit(domain.EventReputationUpdated, ptr(in.AgentID), nil, ptr(out.ID), domain.SummaryOf(state))
		return nil
	})
	if err != nil {
		return domain.FeedbackRecord{}, err
	}
	return out, nil
}

func (s *ReputationService) GetFeedback(ctx context.Context, id uint64) (domain.FeedbackRecord, error) {
	var out domain.FeedbackRecord
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Reputation().GetFeedback(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("feedback %d: %w", id, domain.ErrNotFound)
		}
		return err
	})
	return out, err
}

// FeedbackIDsForAgent lists feedback ids in submission order.
func (s *ReputationService) FeedbackIDsForAgent(ctx context.Context, agentID uint64) ([]uint64, error) {
	var out []uint64
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Reputation().ListFeedbackIDs(ctx, agentID)
		return err
	})
	return out, err
}

func (s *ReputationService) Score(ctx context.Context, agentID uint64) (int64, error) {
	state, err := s.state(ctx, agentID)
	return state.TotalScore, err
}

func (s *ReputationService) FeedbackCount(ctx context.Context, agentID uint64) (uint64, error) {
	state, err := s.state(ctx, agentID)
	return state.FeedbackCount, err
}

func (s *ReputationService) AverageScore(ctx context.Context, agentID uint64) (int64, error) {
	state, err := s.state(ctx, agentID)
	return state.AverageScore(), err
}

func (s *ReputationService) TrustTier(ctx context.Context, agentID uint64) (domain.TrustTier, error) {
	state, err := s.state(ctx, agentID)
	if err != nil {
		return domain.TierUntrusted, err
	}
	return domain.TierFor(state.FeedbackCount, state.AverageScore()), nil
}

// Summary reads score, count, average and tier from one snapshot.
func (s *ReputationService) Summary(ctx context.Context, agentID uint64) (domain.ReputationSummary, error) {
	state, err := s.state(ctx, agentID)
	if err != nil {
		return domain.ReputationSummary{}, err
	}
	return domain.SummaryOf(state), nil
}

func (s *ReputationService) state(ctx context.Context, agentID uint64) (domain.ReputationState, error) {
	var out domain.ReputationState
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Reputation().GetReputation(ctx, agentID)
		return err
	})
	out.AgentID = agentID
	return out, err
}
