package domain

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type AgentIdentity struct {
	ID           uint64         `json:"id"`
	Owner        common.Address `json:"owner"`
	DID          string         `json:"did"`
	Role         string         `json:"role"`
	PublicKey    hexutil.Bytes  `json:"public_key"`
	RegisteredAt time.Time      `json:"registered_at"`
	Active       bool           `json:"active"`
}

type FeedbackKind string

const (
	FeedbackPositive FeedbackKind = "positive"
	FeedbackNegative FeedbackKind = "negative"
	FeedbackNeutral  FeedbackKind = "neutral"
	FeedbackReport   FeedbackKind = "report"
)

func (k FeedbackKind) Valid() bool {
	switch k {
	case FeedbackPositive, FeedbackNegative, FeedbackNeutral, FeedbackReport:
		return true
	}
	return false
}

const (
	MinFeedbackScore = -10
	MaxFeedbackScore = 10
)

type FeedbackRecord struct {
	ID                uint64         `json:"id"`
	AgentID           uint64         `json:"agent_id"`
	Submitter         common.Address `json:"submitter"`
	Kind              FeedbackKind   `json:"kind"`
	Score             int64          `json:"score"`
	Comment           string         `json:"comment"`
	ExternalReference string         `json:"external_reference"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ReputationState is the running aggregate kept per agent. Average and tier
// are always derived from it on read.
type ReputationState struct {
	AgentID       uint64 `json:"agent_id"`
	TotalScore    int64  `json:"total_score"`
	FeedbackCount uint64 `json:"feedback_count"`
}

func (s ReputationState) AverageScore() int64 {
	if s.FeedbackCount == 0 {
		return 0
	}
	return s.TotalScore / int64(s.FeedbackCount)
}

type ReputationSummary struct {
	AgentID       uint64    `json:"agent_id"`
	TotalScore    int64     `json:"total_score"`
	FeedbackCount uint64    `json:"feedback_count"`
	AverageScore  int64     `json:"average_score"`
	TrustTier     TrustTier `json:"trust_tier"`
	TierName      string    `json:"tier_name"`
}

func SummaryOf(s ReputationState) ReputationSummary {
	avg := s.AverageScore()
	tier := TierFor(s.FeedbackCount, avg)
	return ReputationSummary{
		AgentID:       s.AgentID,
		TotalScore:    s.TotalScore,
		FeedbackCount: s.FeedbackCount,
		AverageScore:  avg,
		TrustTier:     tier,
		TierName:      tier.String(),
	}
}

// NoAccount is the account id reserved for "none".
const NoAccount uint64 = 0

type TreasuryAccount struct {
	ID        uint64         `json:"id"`
	AgentID   uint64         `json:"agent_id"`
	Owner     common.Address `json:"owner"`
	Balance   Amount         `json:"balance"`
	CreatedAt time.Time      `json:"created_at"`
	Active    bool           `json:"active"`
}

type PaymentRecord struct {
	ID            uint64    `json:"id"`
	FromAccountID uint64    `json:"from_account_id"`
	ToAccountID   uint64    `json:"to_account_id"`
	Amount        Amount    `json:"amount"`
	Purpose       string    `json:"purpose"`
	ReceiptHash   string    `json:"receipt_hash"`
	CreatedAt     time.Time `json:"created_at"`
}

type LedgerTotals struct {
	TotalFunded    Amount `json:"total_funded"`
	TotalWithdrawn Amount `json:"total_withdrawn"`
	TotalBalance   Amount `json:"total_balance"`
}

// OwnershipPolicy decides whether a treasury account's owner follows the
// linked identity when identity ownership is transferred.
type OwnershipPolicy string

const (
	OwnershipDecoupled      OwnershipPolicy = "decoupled"
	OwnershipFollowIdentity OwnershipPolicy = "follow_identity"
)

type EventKind string

const (
	EventAgentRegistered          EventKind = "agent.registered"
	EventAgentDeactivated         EventKind = "agent.deactivated"
	EventAgentReactivated         EventKind = "agent.reactivated"
	EventAgentOwnershipTransferred EventKind = "agent.ownership_transferred"
	EventFeedbackSubmitted        EventKind = "reputation.feedback_submitted"
	EventReputationUpdated        EventKind = "reputation.updated"
	EventAccountCreated           EventKind = "treasury.account_created"
	EventAccountFunded            EventKind = "treasury.funded"
	EventPaymentExecuted          EventKind = "treasury.payment_executed"
	EventWithdrawn                EventKind = "treasury.withdrawn"
	EventAccountOwnerChanged      EventKind = "treasury.account_owner_changed"
	EventAccountDeactivated       EventKind = "treasury.account_deactivated"
	EventAccountReactivated       EventKind = "treasury.account_reactivated"
	EventOperatorGranted          EventKind = "treasury.operator_granted"
	EventOperatorRevoked          EventKind = "treasury.operator_revoked"
)

// Event is the structured record of one committed mutation. State holds the
// resulting state (not a delta) encoded as JSON.
type Event struct {
	Seq        uint64          `json:"seq"`
	ID         string          `json:"id"`
	Kind       EventKind       `json:"kind"`
	AgentID    *uint64         `json:"agent_id,omitempty"`
	AccountID  *uint64         `json:"account_id,omitempty"`
	RefID      *uint64         `json:"ref_id,omitempty"`
	State      json.RawMessage `json:"state"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type PaymentState struct {
	Payment PaymentRecord   `json:"payment"`
	From    TreasuryAccount `json:"from"`
	To      TreasuryAccount `json:"to"`
}

type WithdrawalState struct {
	Account   TreasuryAccount `json:"account"`
	Recipient common.Address  `json:"recipient"`
	Amount    Amount          `json:"amount"`
	Totals    LedgerTotals    `json:"totals"`
}

type FundingState struct {
	Account TreasuryAccount `json:"account"`
	Amount  Amount          `json:"amount"`
	Totals  LedgerTotals    `json:"totals"`
}

type OwnershipState struct {
	Identity      AgentIdentity  `json:"identity"`
	PreviousOwner common.Address `json:"previous_owner"`
}

type OperatorState struct {
	Operator common.Address `json:"operator"`
	Enabled  bool           `json:"enabled"`
}
