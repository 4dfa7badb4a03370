package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Repositories return ErrNotFound for missing rows. Create methods assign the
// next sequential id of their table.

type IdentityRepository interface {
	CreateIdentity(ctx context.Context, value AgentIdentity) (AgentIdentity, error)
	GetIdentity(ctx context.Context, id uint64) (AgentIdentity, error)
	GetIdentityIDByDID(ctx context.Context, did string) (uint64, error)
	UpdateIdentity(ctx context.Context, value AgentIdentity) error
}

type ReputationRepository interface {
	CreateFeedback(ctx context.Context, value FeedbackRecord) (FeedbackRecord, error)
	GetFeedback(ctx context.Context, id uint64) (FeedbackRecord, error)
	ListFeedbackIDs(ctx context.Context, agentID uint64) ([]uint64, error)
	// GetReputation returns a zero state for agents without feedback.
	GetReputation(ctx context.Context, agentID uint64) (ReputationState, error)
	SaveReputation(ctx context.Context, value ReputationState) error
}

type TreasuryRepository interface {
	CreateAccount(ctx context.Context, value TreasuryAccount) (TreasuryAccount, error)
	GetAccount(ctx context.Context, id uint64) (TreasuryAccount, error)
	GetAccountIDByAgent(ctx context.Context, agentID uint64) (uint64, error)
	UpdateAccount(ctx context.Context, value TreasuryAccount) error
	CreatePayment(ctx context.Context, value PaymentRecord) (PaymentRecord, error)
	GetPayment(ctx context.Context, id uint64) (PaymentRecord, error)
	ListPaymentIDs(ctx context.Context, accountID uint64) ([]uint64, error)
	GetTotals(ctx context.Context) (LedgerTotals, error)
	SaveTotals(ctx context.Context, value LedgerTotals) error
	IsOperator(ctx context.Context, addr common.Address) (bool, error)
	SetOperator(ctx context.Context, addr common.Address, enabled bool) error
	ListOperators(ctx context.Context) ([]common.Address, error)
}

type EventRepository interface {
	AppendEvent(ctx context.Context, value Event) (Event, error)
	ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]Event, error)
}

type LedgerTx interface {
	Identities() IdentityRepository
	Reputation() ReputationRepository
	Treasury() TreasuryRepository
	Events() EventRepository
}

// LedgerStore runs units of work. Update applies every write made through tx
// or none of them. View sees a consistent snapshot and must not write.
type LedgerStore interface {
	Update(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}
