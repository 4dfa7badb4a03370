package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type Config struct {
	// Admin may grant and revoke treasury operators. The zero address
	// disables operator management.
	Admin           common.Address
	Operators       []common.Address
	OwnershipPolicy domain.OwnershipPolicy
	// GatewayKey is the shared secret adapters require from the gateway.
	// Empty leaves the adapters open.
	GatewayKey  string
	EventBuffer int
	Now         func() time.Time
}

// Ledger ties the three registries to one store. The services hold no state
// of their own beyond the per-account locks.
type Ledger struct {
	store   domain.LedgerStore
	cfg     Config
	now     func() time.Time
	broker  *Broker
	locks   *accountLocks
	gateway *GatewayAuth

	Identity   *IdentityService
	Reputation *ReputationService
	Treasury   *TreasuryService
}

func NewLedger(store domain.LedgerStore, cfg Config) (*Ledger, error) {
	if cfg.OwnershipPolicy == "" {
		cfg.OwnershipPolicy = domain.OwnershipDecoupled
	}
	if cfg.OwnershipPolicy != domain.OwnershipDecoupled && cfg.OwnershipPolicy != domain.OwnershipFollowIdentity {
		return nil, fmt.Errorf("unknown ownership policy %q", cfg.OwnershipPolicy)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	gateway, err := NewGatewayAuth(cfg.GatewayKey)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		store:   store,
		cfg:     cfg,
		now:     now,
		broker:  NewBroker(cfg.EventBuffer),
		locks:   newAccountLocks(),
		gateway: gateway,
	}
	l.Identity = &IdentityService{l: l}
	l.Reputation = &ReputationService{l: l}
	l.Treasury = &TreasuryService{l: l}
	return l, nil
}

func (l *Ledger) OwnershipPolicy() domain.OwnershipPolicy {
	return l.cfg.OwnershipPolicy
}

// Bootstrap grants the operators named in the configuration. Operators that
// already hold the grant are left alone, so it is safe on every start.
func (l *Ledger) Bootstrap(ctx context.Context) error {
	for _, op := range l.cfg.Operators {
		if op == (common.Address{}) {
			continue
		}
		err := l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
			ok, err := tx.Treasury().IsOperator(ctx, op)
			if err != nil || ok {
				return err
			}
			if err := tx.Treasury().SetOperator(ctx, op, true); err != nil {
				return err
			}
			rec.emit(domain.EventOperatorGranted, nil, nil, nil, domain.OperatorState{Operator: op, Enabled: true})
			return nil
		})
		if err != nil {
			return fmt.Errorf("bootstrap operator %s: %w", op.Hex(), err)
		}
	}
	return nil
}

func (l *Ledger) AuthenticateGateway(key string) error {
	if !l.gateway.Verify(key) {
		return domain.ErrUnauthorized
	}
	return nil
}

func (l *Ledger) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 2000 {
		limit = 2000
	}
	var out []domain.Event
	err := l.store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Events().ListEvents(ctx, afterSeq, limit)
		return err
	})
	return out, err
}

// Subscribe follows events as they are committed. The returned function
// must be called to release the subscription.
func (l *Ledger) Subscribe() (<-chan domain.Event, func()) {
	return l.broker.Subscribe()
}

// recorder collects the events of one unit of work. They are written to the
// event log inside the transaction and published only after it commits.
type recorder struct {
	now     time.Time
	pending []domain.Event
	err     error
}

func (r *recorder) emit(kind domain.EventKind, agentID, accountID, refID *uint64, state any) {
	if r.err != nil {
		return
	}
	raw, err := json.Marshal(state)
	if err != nil {
		r.err = fmt.Errorf("encode %s event: %w", kind, err)
		return
	}
	r.pending = append(r.pending, domain.Event{
		Kind:      kind,
		AgentID:   agentID,
		AccountID: accountID,
		RefID:     refID,
		State:     raw,
	})
}

func (l *Ledger) update(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error) error {
	var committed []domain.Event
	err := l.store.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		committed = committed[:0]
		rec := &recorder{now: l.now()}
		if err := fn(ctx, tx, rec); err != nil {
			return err
		}
		if rec.err != nil {
			return rec.err
		}
		for _, ev := range rec.pending {
			ev.ID = uuid.NewString()
			ev.OccurredAt = rec.now
			stored, err := tx.Events().AppendEvent(ctx, ev)
			if err != nil {
				return fmt.Errorf("append %s event: %w", ev.Kind, err)
			}
			committed = append(committed, stored)
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.broker.Publish(committed)
	return nil
}

func (l *Ledger) view(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return l.store.View(ctx, fn)
}

func ptr(v uint64) *uint64 {
	return &v
}
