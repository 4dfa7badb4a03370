package application

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestTenNeutralFeedbacksReachEmerging(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Config{})
	agent := registerAgent(t, l, alice, "did:agent:alpha")

	for i := 0; i < 10; i++ {
		_, err := l.Reputation.SubmitFeedback(ctx, FeedbackInput{
			Submitter: bob,
			AgentID:   agent.ID,
			Kind:      domain.FeedbackPositive,
			Score:     3,
		})
		require.NoError(t, err)
	}

	count, err := l.Reputation.FeedbackCount(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, uint64(10), count)
	score, err := l.Reputation.Score(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, int64(30), score)
	avg, err := l.Reputation.AverageScore(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), avg)
	tier, err := l.Reputation.TrustTier(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, domain.TierEmerging, tier)

	summary, err := l.Reputation.Summary(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, "emerging", summary.TierName)

	ids, err := l.Reputation.FeedbackIDsForAgent(ctx, agent.ID)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, ids)
}

func TestSubmitFeedbackValidation(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Config{})

	_, err := l.Reputation.SubmitFeedback(ctx, FeedbackInput{Submitter: bob, Kind: domain.FeedbackNegative, Score: -11})
	require.ErrorIs(t, err, domain.ErrScoreOutOfRange)
	_, err = l.Reputation.SubmitFeedback(ctx, FeedbackInput{Submitter: bob, Kind: domain.FeedbackNegative, Score: 11})
	require.ErrorIs(t, err, domain.ErrScoreOutOfRange)
	_, err = l.Reputation.SubmitFeedback(ctx, FeedbackInput{Submitter: bob, Kind: "glowing", Score: 1})
	require.ErrorIs(t, err, domain.ErrInvalidFeedbackKind)

	count, err := l.Reputation.FeedbackCount(ctx, 0)
	require.NoError(t, err)
	require.Zero(t, count)

	_, err = l.Reputation.GetFeedback(ctx, 0)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFeedbackForUnregisteredAgentIsAccepted(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Config{})

	record, err := l.Reputation.SubmitFeedback(ctx, FeedbackInput{
		Submitter:         carol,
		AgentID:           404,
		Kind:              domain.FeedbackReport,
		Score:             -10,
		Comment:           "spam",
		ExternalReference: "ticket-9",
	})
	require.NoError(t, err)

	got, err := l.Reputation.GetFeedback(ctx, record.ID)
	require.NoError(t, err)
	require.Equal(t, "ticket-9", got.ExternalReference)
	require.Equal(t, carol, got.Submitter)

	avg, err := l.Reputation.AverageScore(ctx, 404)
	require.NoError(t, err)
	require.Equal(t, int64(-10), avg)

	events, err := l.ListEvents(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []domain.EventKind{domain.EventFeedbackSubmitted, domain.EventReputationUpdated}, eventKinds(events))
}

func TestNegativeAverageTruncatesTowardZero(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Config{})
	for _, score := range []int64{-2, -2, -1} {
		_, err := l.Reputation.SubmitFeedback(ctx, FeedbackInput{Submitter: bob, AgentID: 1, Kind: domain.FeedbackNegative, Score: score})
		require.NoError(t, err)
	}
	avg, err := l.Reputation.AverageScore(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(-1), avg)
}
