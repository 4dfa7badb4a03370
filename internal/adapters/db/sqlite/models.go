package sqlite

import "time"

// Ids are issued by the repository inside the writing transaction, so the
// primary keys carry autoIncrement:false and zero is stored as given.

type AgentIdentityModel struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement:false"`
	Owner        string `gorm:"not null;index"`
	DID          string `gorm:"column:did;uniqueIndex;not null"`
	Role         string `gorm:"not null"`
	PublicKey    []byte `gorm:"not null"`
	RegisteredAt time.Time
	Active       bool `gorm:"not null;default:true"`
}

func (AgentIdentityModel) TableName() string { return "agent_identities" }

type FeedbackModel struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement:false"`
	AgentID           uint64 `gorm:"not null;index"`
	Submitter         string `gorm:"not null"`
	Kind              string `gorm:"not null"`
	Score             int64  `gorm:"not null"`
	Comment           string
	ExternalReference string
	CreatedAt         time.Time
}

func (FeedbackModel) TableName() string { return "feedback" }

type ReputationModel struct {
	AgentID       uint64 `gorm:"primaryKey;autoIncrement:false"`
	TotalScore    int64  `gorm:"not null;default:0"`
	FeedbackCount uint64 `gorm:"not null;default:0"`
}

func (ReputationModel) TableName() string { return "reputation" }

type TreasuryAccountModel struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement:false"`
	AgentID   uint64 `gorm:"not null;uniqueIndex"`
	Owner     string `gorm:"not null;index"`
	Balance   int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	Active    bool `gorm:"not null;default:true"`
}

func (TreasuryAccountModel) TableName() string { return "treasury_accounts" }

type PaymentModel struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	FromAccountID uint64 `gorm:"not null;index"`
	ToAccountID   uint64 `gorm:"not null;index"`
	Amount        int64  `gorm:"not null"`
	Purpose       string
	ReceiptHash   string
	CreatedAt     time.Time
}

func (PaymentModel) TableName() string { return "payments" }

// LedgerTotalsModel is a single row keyed by totalsRowID.
type LedgerTotalsModel struct {
	ID             uint  `gorm:"primaryKey;autoIncrement:false"`
	TotalFunded    int64 `gorm:"not null;default:0"`
	TotalWithdrawn int64 `gorm:"not null;default:0"`
	TotalBalance   int64 `gorm:"not null;default:0"`
}

func (LedgerTotalsModel) TableName() string { return "ledger_totals" }

type OperatorModel struct {
	Address   string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (OperatorModel) TableName() string { return "treasury_operators" }

type EventModel struct {
	Seq        uint64 `gorm:"column:seq;primaryKey"`
	EventID    string `gorm:"column:event_id;uniqueIndex;not null"`
	Kind       string `gorm:"not null;index"`
	AgentID    *uint64
	AccountID  *uint64
	RefID      *uint64
	State      string `gorm:"not null"`
	OccurredAt time.Time
}

func (EventModel) TableName() string { return "events" }
