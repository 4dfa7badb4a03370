// Package memory is an in-process LedgerStore. Writers are serialized by a
// single lock and every change is journalled so a failed unit of work leaves
// no trace; readers share the lock and always see whole units of work.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

var errReadOnly = errors.New("memory: write in read-only transaction")

type Store struct {
	mu sync.RWMutex

	identities   map[uint64]domain.AgentIdentity
	didIndex     map[string]uint64
	nextIdentity uint64

	feedback        map[uint64]domain.FeedbackRecord
	feedbackByAgent map[uint64][]uint64
	nextFeedback    uint64
	reputation      map[uint64]domain.ReputationState

	accounts          map[uint64]domain.TreasuryAccount
	accountByAgent    map[uint64]uint64
	nextAccount       uint64
	payments          map[uint64]domain.PaymentRecord
	paymentsByAccount map[uint64][]uint64
	nextPayment       uint64
	totals            domain.LedgerTotals
	operators         map[common.Address]struct{}

	events []domain.Event
}

func New() *Store {
	return &Store{
		identities:        make(map[uint64]domain.AgentIdentity),
		didIndex:          make(map[string]uint64),
		feedback:          make(map[uint64]domain.FeedbackRecord),
		feedbackByAgent:   make(map[uint64][]uint64),
		reputation:        make(map[uint64]domain.ReputationState),
		accounts:          make(map[uint64]domain.TreasuryAccount),
		accountByAgent:    make(map[uint64]uint64),
		nextAccount:       1,
		payments:          make(map[uint64]domain.PaymentRecord),
		paymentsByAccount: make(map[uint64][]uint64),
		operators:         make(map[common.Address]struct{}),
	}
}

func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, journal: &journal{}, writable: true}
	if err := fn(ctx, tx); err != nil {
		tx.journal.revert(s)
		return err
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &memTx{s: s})
}

type memTx struct {
	s        *Store
	journal  *journal
	writable bool
}

func (tx *memTx) Identities() domain.IdentityRepository   { return tx }
func (tx *memTx) Reputation() domain.ReputationRepository { return tx }
func (tx *memTx) Treasury() domain.TreasuryRepository     { return tx }
func (tx *memTx) Events() domain.EventRepository          { return tx }

func (tx *memTx) CreateIdentity(_ context.Context, value domain.AgentIdentity) (domain.AgentIdentity, error) {
	if !tx.writable {
		return domain.AgentIdentity{}, errReadOnly
	}
	s := tx.s
	if _, ok := s.didIndex[value.DID]; ok {
		return domain.AgentIdentity{}, domain.ErrDuplicateDID
	}
	value.ID = s.nextIdentity
	value.PublicKey = bytes.Clone(value.PublicKey)
	s.identities[value.ID] = value
	s.didIndex[value.DID] = value.ID
	s.nextIdentity++
	tx.journal.append(identityCreateChange{id: value.ID, did: value.DID})
	return cloneIdentity(value), nil
}

func (tx *memTx) GetIdentity(_ context.Context, id uint64) (domain.AgentIdentity, error) {
	v, ok := tx.s.identities[id]
	if !ok {
		return domain.AgentIdentity{}, domain.ErrNotFound
	}
	return cloneIdentity(v), nil
}

func (tx *memTx) GetIdentityIDByDID(_ context.Context, did string) (uint64, error) {
	id, ok := tx.s.didIndex[did]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return id, nil
}

func (tx *memTx) UpdateIdentity(_ context.Context, value domain.AgentIdentity) error {
	if !tx.writable {
		return errReadOnly
	}
	prev, ok := tx.s.identities[value.ID]
	if !ok {
		return domain.ErrNotFound
	}
	tx.journal.append(identityUpdateChange{prev: prev})
	// DID and registration data are immutable once written.
	next := prev
	next.Owner, next.Active = value.Owner, value.Active
	tx.s.identities[value.ID] = next
	return nil
}

func (tx *memTx) CreateFeedback(_ context.Context, value domain.FeedbackRecord) (domain.FeedbackRecord, error) {
	if !tx.writable {
		return domain.FeedbackRecord{}, errReadOnly
	}
	s := tx.s
	value.ID = s.nextFeedback
	s.feedback[value.ID] = value
	s.feedbackByAgent[value.AgentID] = append(s.feedbackByAgent[value.AgentID], value.ID)
	s.nextFeedback++
	tx.journal.append(feedbackCreateChange{id: value.ID, agentID: value.AgentID})
	return value, nil
}

func (tx *memTx) GetFeedback(_ context.Context, id uint64) (domain.FeedbackRecord, error) {
	v, ok := tx.s.feedback[id]
	if !ok {
		return domain.FeedbackRecord{}, domain.ErrNotFound
	}
	return v, nil
}

func (tx *memTx) ListFeedbackIDs(_ context.Context, agentID uint64) ([]uint64, error) {
	return cloneIDs(tx.s.feedbackByAgent[agentID]), nil
}

func (tx *memTx) GetReputation(_ context.Context, agentID uint64) (domain.ReputationState, error) {
	v, ok := tx.s.reputation[agentID]
	if !ok {
		return domain.ReputationState{AgentID: agentID}, nil
	}
	return v, nil
}

func (tx *memTx) SaveReputation(_ context.Context, value domain.ReputationState) error {
	if !tx.writable {
		return errReadOnly
	}
	prev, existed := tx.s.reputation[value.AgentID]
	if !existed {
		prev = domain.ReputationState{AgentID: value.AgentID}
	}
	tx.journal.append(reputationChange{prev: prev, existed: existed})
	tx.s.reputation[value.AgentID] = value
	return nil
}

func (tx *memTx) CreateAccount(_ context.Context, value domain.TreasuryAccount) (domain.TreasuryAccount, error) {
	if !tx.writable {
		return domain.TreasuryAccount{}, errReadOnly
	}
	s := tx.s
	if _, ok := s.accountByAgent[value.AgentID]; ok {
		return domain.TreasuryAccount{}, domain.ErrAccountExists
	}
	value.ID = s.nextAccount
	s.accounts[value.ID] = value
	s.accountByAgent[value.AgentID] = value.ID
	s.nextAccount++
	tx.journal.append(accountCreateChange{id: value.ID, agentID: value.AgentID})
	return value, nil
}

func (tx *memTx) GetAccount(_ context.Context, id uint64) (domain.TreasuryAccount, error) {
	v, ok := tx.s.accounts[id]
	if !ok {
		return domain.TreasuryAccount{}, domain.ErrNotFound
	}
	return v, nil
}

func (tx *memTx) GetAccountIDByAgent(_ context.Context, agentID uint64) (uint64, error) {
	id, ok := tx.s.accountByAgent[agentID]
	if !ok {
		return domain.NoAccount, domain.ErrNotFound
	}
	return id, nil
}

func (tx *memTx) UpdateAccount(_ context.Context, value domain.TreasuryAccount) error {
	if !tx.writable {
		return errReadOnly
	}
	prev, ok := tx.s.accounts[value.ID]
	if !ok {
		return domain.ErrNotFound
	}
	tx.journal.append(accountUpdateChange{prev: prev})
	next := prev
	next.Owner, next.Balance, next.Active = value.Owner, value.Balance, value.Active
	tx.s.accounts[value.ID] = next
	return nil
}

func (tx *memTx) CreatePayment(_ context.Context, value domain.PaymentRecord) (domain.PaymentRecord, error) {
	if !tx.writable {
		return domain.PaymentRecord{}, errReadOnly
	}
	s := tx.s
	value.ID = s.nextPayment
	s.payments[value.ID] = value
	s.paymentsByAccount[value.FromAccountID] = append(s.paymentsByAccount[value.FromAccountID], value.ID)
	if value.ToAccountID != value.FromAccountID {
		s.paymentsByAccount[value.ToAccountID] = append(s.paymentsByAccount[value.ToAccountID], value.ID)
	}
	s.nextPayment++
	tx.journal.append(paymentCreateChange{id: value.ID, from: value.FromAccountID, to: value.ToAccountID})
	return value, nil
}

func (tx *memTx) GetPayment(_ context.Context, id uint64) (domain.PaymentRecord, error) {
	v, ok := tx.s.payments[id]
	if !ok {
		return domain.PaymentRecord{}, domain.ErrNotFound
	}
	return v, nil
}

func (tx *memTx) ListPaymentIDs(_ context.Context, accountID uint64) ([]uint64, error) {
	return cloneIDs(tx.s.paymentsByAccount[accountID]), nil
}

func (tx *memTx) GetTotals(_ context.Context) (domain.LedgerTotals, error) {
	return tx.s.totals, nil
}

func (tx *memTx) SaveTotals(_ context.Context, value domain.LedgerTotals) error {
	if !tx.writable {
		return errReadOnly
	}
	tx.journal.append(totalsChange{prev: tx.s.totals})
	tx.s.totals = value
	return nil
}

func (tx *memTx) IsOperator(_ context.Context, addr common.Address) (bool, error) {
	_, ok := tx.s.operators[addr]
	return ok, nil
}

func (tx *memTx) SetOperator(_ context.Context, addr common.Address, enabled bool) error {
	if !tx.writable {
		return errReadOnly
	}
	_, was := tx.s.operators[addr]
	if was == enabled {
		return nil
	}
	tx.journal.append(operatorChange{addr: addr, enabled: was})
	if enabled {
		tx.s.operators[addr] = struct{}{}
	} else {
		delete(tx.s.operators, addr)
	}
	return nil
}

func (tx *memTx) ListOperators(_ context.Context) ([]common.Address, error) {
	out := make([]common.Address, 0, len(tx.s.operators))
	for addr := range tx.s.operators {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out, nil
}

func (tx *memTx) AppendEvent(_ context.Context, value domain.Event) (domain.Event, error) {
	if !tx.writable {
		return domain.Event{}, errReadOnly
	}
	value.Seq = uint64(len(tx.s.events)) + 1
	tx.s.events = append(tx.s.events, value)
	tx.journal.append(eventAppendChange{})
	return value, nil
}

func (tx *memTx) ListEvents(_ context.Context, afterSeq uint64, limit int) ([]domain.Event, error) {
	events := tx.s.events
	if afterSeq >= uint64(len(events)) {
		return []domain.Event{}, nil
	}
	events = events[afterSeq:]
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	out := make([]domain.Event, len(events))
	copy(out, events)
	return out, nil
}

func cloneIdentity(v domain.AgentIdentity) domain.AgentIdentity {
	v.PublicKey = bytes.Clone(v.PublicKey)
	return v
}

func cloneIDs(ids []uint64) []uint64 {
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}
