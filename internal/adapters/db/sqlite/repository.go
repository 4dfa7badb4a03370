package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

const totalsRowID = 1

// Open connects to the database at path. A single connection is kept so
// writers queue in process instead of failing on SQLITE_BUSY, and so that
// ":memory:" names one database.
func Open(path string) (*gorm.DB, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)",
	}, &gorm.Config{})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// LedgerStore runs each unit of work in one database transaction.
type LedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func (s *LedgerStore) Update(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &ledgerTx{db: tx})
	})
}

func (s *LedgerStore) View(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &ledgerTx{db: tx})
	})
}

type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) Identities() domain.IdentityRepository   { return t }
func (t *ledgerTx) Reputation() domain.ReputationRepository { return t }
func (t *ledgerTx) Treasury() domain.TreasuryRepository     { return t }
func (t *ledgerTx) Events() domain.EventRepository          { return t }

// nextID returns the next gap-free id of table. It relies on the caller
// holding the write transaction.
func (t *ledgerTx) nextID(ctx context.Context, table string, base uint64) (uint64, error) {
	var next uint64
	err := t.db.WithContext(ctx).Raw(fmt.Sprintf("SELECT COALESCE(MAX(id) + 1, ?) FROM %s", table), base).Scan(&next).Error
	return next, err
}

func (t *ledgerTx) CreateIdentity(ctx context.Context, value domain.AgentIdentity) (domain.AgentIdentity, error) {
	id, err := t.nextID(ctx, "agent_identities", 0)
	if err != nil {
		return domain.AgentIdentity{}, err
	}
	m := AgentIdentityModel{
		ID:           id,
		Owner:        addressKey(value.Owner),
		DID:          value.DID,
		Role:         value.Role,
		PublicKey:    value.PublicKey,
		RegisteredAt: value.RegisteredAt,
		Active:       value.Active,
	}
	// Active has a column default, so false must be written explicitly.
	if err := t.db.WithContext(ctx).Select("*").Create(&m).Error; err != nil {
		return domain.AgentIdentity{}, err
	}
	return toIdentity(m), nil
}

func (t *ledgerTx) GetIdentity(ctx context.Context, id uint64) (domain.AgentIdentity, error) {
	var m AgentIdentityModel
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.AgentIdentity{}, notFound(err)
	}
	return toIdentity(m), nil
}

func (t *ledgerTx) GetIdentityIDByDID(ctx context.Context, did string) (uint64, error) {
	var m AgentIdentityModel
	if err := t.db.WithContext(ctx).Select("id").Where("did = ?", did).First(&m).Error; err != nil {
		return 0, notFound(err)
	}
	return m.ID, nil
}

func (t *ledgerTx) UpdateIdentity(ctx context.Context, value domain.AgentIdentity) error {
	res := t.db.WithContext(ctx).Model(&AgentIdentityModel{}).Where("id = ?", value.ID).Updates(map[string]any{
		"owner":  addressKey(value.Owner),
		"active": value.Active,
	})
	return affected(res)
}

func (t *ledgerTx) CreateFeedback(ctx context.Context, value domain.FeedbackRecord) (domain.FeedbackRecord, error) {
	id, err := t.nextID(ctx, "feedback", 0)
	if err != nil {
		return domain.FeedbackRecord{}, err
	}
	m := FeedbackModel{
		ID:                id,
		AgentID:           value.AgentID,
		Submitter:         addressKey(value.Submitter),
		Kind:              string(value.Kind),
		Score:             value.Score,
		Comment:           value.Comment,
		ExternalReference: value.ExternalReference,
		CreatedAt:         value.CreatedAt,
	}
	if err := t.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.FeedbackRecord{}, err
	}
	return toFeedback(m), nil
}

func (t *ledgerTx) GetFeedback(ctx context.Context, id uint64) (domain.FeedbackRecord, error) {
	var m FeedbackModel
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.FeedbackRecord{}, notFound(err)
	}
	return toFeedback(m), nil
}

func (t *ledgerTx) ListFeedbackIDs(ctx context.Context, agentID uint64) ([]uint64, error) {
	ids := make([]uint64, 0)
	err := t.db.WithContext(ctx).Model(&FeedbackModel{}).Where("agent_id = ?", agentID).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

func (t *ledgerTx) GetReputation(ctx context.Context, agentID uint64) (domain.ReputationState, error) {
	var m ReputationModel
	err := t.db.WithContext(ctx).Where("agent_id = ?", agentID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ReputationState{AgentID: agentID}, nil
	}
	if err != nil {
		return domain.ReputationState{}, err
	}
	return domain.ReputationState{AgentID: m.AgentID, TotalScore: m.TotalScore, FeedbackCount: m.FeedbackCount}, nil
}

func (t *ledgerTx) SaveReputation(ctx context.Context, value domain.ReputationState) error {
	m := ReputationModel{AgentID: value.AgentID, TotalScore: value.TotalScore, FeedbackCount: value.FeedbackCount}
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "agent_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_score", "feedback_count"}),
	}).Create(&m).Error
}

func (t *ledgerTx) CreateAccount(ctx context.Context, value domain.TreasuryAccount) (domain.TreasuryAccount, error) {
	id, err := t.nextID(ctx, "treasury_accounts", 1)
	if err != nil {
		return domain.TreasuryAccount{}, err
	}
	m := TreasuryAccountModel{
		ID:        id,
		AgentID:   value.AgentID,
		Owner:     addressKey(value.Owner),
		Balance:   int64(value.Balance),
		CreatedAt: value.CreatedAt,
		Active:    value.Active,
	}
	if err := t.db.WithContext(ctx).Select("*").Create(&m).Error; err != nil {
		return domain.TreasuryAccount{}, err
	}
	return toAccount(m), nil
}

func (t *ledgerTx) GetAccount(ctx context.Context, id uint64) (domain.TreasuryAccount, error) {
	var m TreasuryAccountModel
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.TreasuryAccount{}, notFound(err)
	}
	return toAccount(m), nil
}

func (t *ledgerTx) GetAccountIDByAgent(ctx context.Context, agentID uint64) (uint64, error) {
	var m TreasuryAccountModel
	if err := t.db.WithContext(ctx).Select("id").Where("agent_id = ?", agentID).First(&m).Error; err != nil {
		return domain.NoAccount, notFound(err)
	}
	return m.ID, nil
}

func (t *ledgerTx) UpdateAccount(ctx context.Context, value domain.TreasuryAccount) error {
	res := t.db.WithContext(ctx).Model(&TreasuryAccountModel{}).Where("id = ?", value.ID).Updates(map[string]any{
		"owner":   addressKey(value.Owner),
		"balance": int64(value.Balance),
		"active":  value.Active,
	})
	return affected(res)
}

func (t *ledgerTx) CreatePayment(ctx context.Context, value domain.PaymentRecord) (domain.PaymentRecord, error) {
	id, err := t.nextID(ctx, "payments", 0)
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	m := PaymentModel{
		ID:            id,
		FromAccountID: value.FromAccountID,
		ToAccountID:   value.ToAccountID,
		Amount:        int64(value.Amount),
		Purpose:       value.Purpose,
		ReceiptHash:   value.ReceiptHash,
		CreatedAt:     value.CreatedAt,
	}
	if err := t.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.PaymentRecord{}, err
	}
	return toPayment(m), nil
}

func (t *ledgerTx) GetPayment(ctx context.Context, id uint64) (domain.PaymentRecord, error) {
	var m PaymentModel
	if err := t.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return domain.PaymentRecord{}, notFound(err)
	}
	return toPayment(m), nil
}

func (t *ledgerTx) ListPaymentIDs(ctx context.Context, accountID uint64) ([]uint64, error) {
	ids := make([]uint64, 0)
	err := t.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("from_account_id = ? OR to_account_id = ?", accountID, accountID).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (t *ledgerTx) GetTotals(ctx context.Context) (domain.LedgerTotals, error) {
	var m LedgerTotalsModel
	err := t.db.WithContext(ctx).Where("id = ?", totalsRowID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.LedgerTotals{}, nil
	}
	if err != nil {
		return domain.LedgerTotals{}, err
	}
	return domain.LedgerTotals{
		TotalFunded:    domain.Amount(m.TotalFunded),
		TotalWithdrawn: domain.Amount(m.TotalWithdrawn),
		TotalBalance:   domain.Amount(m.TotalBalance),
	}, nil
}

func (t *ledgerTx) SaveTotals(ctx context.Context, value domain.LedgerTotals) error {
	m := LedgerTotalsModel{
		ID:             totalsRowID,
		TotalFunded:    int64(value.TotalFunded),
		TotalWithdrawn: int64(value.TotalWithdrawn),
		TotalBalance:   int64(value.TotalBalance),
	}
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_funded", "total_withdrawn", "total_balance"}),
	}).Create(&m).Error
}

func (t *ledgerTx) IsOperator(ctx context.Context, addr common.Address) (bool, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&OperatorModel{}).Where("address = ?", addressKey(addr)).Count(&count).Error
	return count > 0, err
}

func (t *ledgerTx) SetOperator(ctx context.Context, addr common.Address, enabled bool) error {
	if !enabled {
		return t.db.WithContext(ctx).Where("address = ?", addressKey(addr)).Delete(&OperatorModel{}).Error
	}
	m := OperatorModel{Address: addressKey(addr)}
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (t *ledgerTx) ListOperators(ctx context.Context) ([]common.Address, error) {
	rows := make([]string, 0)
	if err := t.db.WithContext(ctx).Model(&OperatorModel{}).Order("address ASC").Pluck("address", &rows).Error; err != nil {
		return nil, err
	}
	result := make([]common.Address, 0, len(rows))
	for _, raw := range rows {
		result = append(result, common.HexToAddress(raw))
	}
	return result, nil
}

func (t *ledgerTx) AppendEvent(ctx context.Context, value domain.Event) (domain.Event, error) {
	m := EventModel{
		EventID:    value.ID,
		Kind:       string(value.Kind),
		AgentID:    value.AgentID,
		AccountID:  value.AccountID,
		RefID:      value.RefID,
		State:      string(value.State),
		OccurredAt: value.OccurredAt,
	}
	if err := t.db.WithContext(ctx).Create(&m).Error; err != nil {
		return domain.Event{}, err
	}
	return toEvent(m), nil
}

func (t *ledgerTx) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]domain.Event, error) {
	q := t.db.WithContext(ctx).Where("seq > ?", afterSeq).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	rows := make([]EventModel, 0)
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.Event, 0, len(rows))
	for _, m := range rows {
		result = append(result, toEvent(m))
	}
	return result, nil
}

func toIdentity(m AgentIdentityModel) domain.AgentIdentity {
	return domain.AgentIdentity{
		ID:           m.ID,
		Owner:        common.HexToAddress(m.Owner),
		DID:          m.DID,
		Role:         m.Role,
		PublicKey:    m.PublicKey,
		RegisteredAt: m.RegisteredAt,
		Active:       m.Active,
	}
}

func toFeedback(m FeedbackModel) domain.FeedbackRecord {
	return domain.FeedbackRecord{
		ID:                m.ID,
		AgentID:           m.AgentID,
		Submitter:         common.HexToAddress(m.Submitter),
		Kind:              domain.FeedbackKind(m.Kind),
		Score:             m.Score,
		Comment:           m.Comment,
		ExternalReference: m.ExternalReference,
		CreatedAt:         m.CreatedAt,
	}
}

func toAccount(m TreasuryAccountModel) domain.TreasuryAccount {
	return domain.TreasuryAccount{
		ID:        m.ID,
		AgentID:   m.AgentID,
		Owner:     common.HexToAddress(m.Owner),
		Balance:   domain.Amount(m.Balance),
		CreatedAt: m.CreatedAt,
		Active:    m.Active,
	}
}

func toPayment(m PaymentModel) domain.PaymentRecord {
	return domain.PaymentRecord{
		ID:            m.ID,
		FromAccountID: m.FromAccountID,
		ToAccountID:   m.ToAccountID,
		Amount:        domain.Amount(m.Amount),
		Purpose:       m.Purpose,
		ReceiptHash:   m.ReceiptHash,
		CreatedAt:     m.CreatedAt,
	}
}

func toEvent(m EventModel) domain.Event {
	return domain.Event{
		Seq:        m.Seq,
		ID:         m.EventID,
		Kind:       domain.EventKind(m.Kind),
		AgentID:    m.AgentID,
		AccountID:  m.AccountID,
		RefID:      m.RefID,
		State:      json.RawMessage(m.State),
		OccurredAt: m.OccurredAt,
	}
}

// addressKey is the stored form of an address. Lowercase hex keeps ORDER BY
// in byte order.
func addressKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func affected(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
