package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/agentledger/internal/application"
	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ownerA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	ownerB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func openTestStore(t *testing.T) *LedgerStore {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "agentledger_test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	version, err := RunMigrations(ctx, db)
	if err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if version != 1 {
		t.Fatalf("expected schema version 1, got %d", version)
	}
	return NewLedgerStore(db)
}

func TestIdsStartAtTheirBase(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		first, err := tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{Owner: ownerA, DID: "did:a", Role: "r", PublicKey: []byte{1}, Active: true})
		if err != nil {
			return err
		}
		second, err := tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{Owner: ownerA, DID: "did:b", Role: "r", PublicKey: []byte{1}, Active: true})
		if err != nil {
			return err
		}
		if first.ID != 0 || second.ID != 1 {
			t.Fatalf("identity ids = %d, %d", first.ID, second.ID)
		}

		account, err := tx.Treasury().CreateAccount(ctx, domain.TreasuryAccount{AgentID: first.ID, Owner: ownerA, Active: true})
		if err != nil {
			return err
		}
		if account.ID != 1 {
			t.Fatalf("first account id = %d", account.ID)
		}

		feedback, err := tx.Reputation().CreateFeedback(ctx, domain.FeedbackRecord{AgentID: first.ID, Submitter: ownerB, Kind: domain.FeedbackNeutral})
		if err != nil {
			return err
		}
		if feedback.ID != 0 {
			t.Fatalf("first feedback id = %d", feedback.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		got, err := tx.Identities().GetIdentity(ctx, 0)
		if err != nil {
			return err
		}
		if got.DID != "did:a" || got.Owner != ownerA || !got.Active {
			t.Fatalf("unexpected identity: %+v", got)
		}
		if _, err := tx.Identities().GetIdentity(ctx, 9); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		id, err := tx.Treasury().GetAccountIDByAgent(ctx, 0)
		if err != nil || id != 1 {
			t.Fatalf("account for agent 0 = %d, %v", id, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestFailedUpdateRollsBack(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	boom := errors.New("boom")

	err := store.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		if _, err := tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{Owner: ownerA, DID: "did:a", Role: "r", PublicKey: []byte{1}}); err != nil {
			return err
		}
		if err := tx.Treasury().SaveTotals(ctx, domain.LedgerTotals{TotalFunded: 10, TotalBalance: 10}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	err = store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		if _, err := tx.Identities().GetIdentityIDByDID(ctx, "did:a"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("identity survived rollback: %v", err)
		}
		totals, err := tx.Treasury().GetTotals(ctx)
		if err != nil {
			return err
		}
		if totals != (domain.LedgerTotals{}) {
			t.Fatalf("totals survived rollback: %+v", totals)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestReputationAndTotalsUpsert(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 1; i <= 3; i++ {
		err := store.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
			state, err := tx.Reputation().GetReputation(ctx, 0)
			if err != nil {
				return err
			}
			state.TotalScore += 5
			state.FeedbackCount++
			if err := tx.Reputation().SaveReputation(ctx, state); err != nil {
				return err
			}
			return tx.Treasury().SaveTotals(ctx, domain.LedgerTotals{TotalFunded: domain.Amount(i), TotalBalance: domain.Amount(i)})
		})
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	err := store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		state, err := tx.Reputation().GetReputation(ctx, 0)
		if err != nil {
			return err
		}
		if state.TotalScore != 15 || state.FeedbackCount != 3 {
			t.Fatalf("unexpected reputation: %+v", state)
		}
		totals, err := tx.Treasury().GetTotals(ctx)
		if err != nil {
			return err
		}
		if totals.TotalFunded != 3 {
			t.Fatalf("unexpected totals: %+v", totals)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestOperatorsAndEvents(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	err := store.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		for _, addr := range []common.Address{ownerB, ownerA, ownerA} {
			if err := tx.Treasury().SetOperator(ctx, addr, true); err != nil {
				return err
			}
		}
		if err := tx.Treasury().SetOperator(ctx, ownerB, false); err != nil {
			return err
		}
		for i := 0; i < 3; i++ {
			ev := domain.Event{
				ID:         "ev-" + string(rune('a'+i)),
				Kind:       domain.EventOperatorGranted,
				State:      []byte(`{"enabled":true}`),
				OccurredAt: time.Now().UTC(),
			}
			if _, err := tx.Events().AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	err = store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		ops, err := tx.Treasury().ListOperators(ctx)
		if err != nil {
			return err
		}
		if len(ops) != 1 || ops[0] != ownerA {
			t.Fatalf("unexpected operators: %v", ops)
		}
		events, err := tx.Events().ListEvents(ctx, 1, 10)
		if err != nil {
			return err
		}
		if len(events) != 2 || events[0].Seq != 2 || events[1].ID != "ev-c" {
			t.Fatalf("unexpected events: %+v", events)
		}
		if string(events[0].State) != `{"enabled":true}` {
			t.Fatalf("state not preserved: %s", events[0].State)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestLedgerOnSQLite(t *testing.T) {
	ctx := context.Background()
	ledger, err := application.NewLedger(openTestStore(t), application.Config{})
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	a, err := ledger.Identity.Register(ctx, application.RegisterInput{Owner: ownerA, DID: "did:a", Role: "buyer", PublicKey: []byte{1}})
	if err != nil {
		t.Fatalf("register a: %v", err)
	}
	b, err := ledger.Identity.Register(ctx, application.RegisterInput{Owner: ownerB, DID: "did:b", Role: "seller", PublicKey: []byte{2}})
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	if _, err := ledger.Identity.Register(ctx, application.RegisterInput{Owner: ownerB, DID: "did:a", Role: "x", PublicKey: []byte{3}}); !errors.Is(err, domain.ErrDuplicateDID) {
		t.Fatalf("expected duplicate did, got %v", err)
	}

	accA, err := ledger.Treasury.CreateAccount(ctx, a.ID, ownerA)
	if err != nil {
		t.Fatalf("create account a: %v", err)
	}
	accB, err := ledger.Treasury.CreateAccount(ctx, b.ID, ownerB)
	if err != nil {
		t.Fatalf("create account b: %v", err)
	}
	thousand, _ := domain.ParseAmount("1000")
	if _, err := ledger.Treasury.Fund(ctx, accA.ID, thousand); err != nil {
		t.Fatalf("fund: %v", err)
	}

	one, _ := domain.ParseAmount("1")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Treasury.Transfer(ctx, application.TransferInput{
				Caller:        ownerA,
				FromAccountID: accA.ID,
				ToAccountID:   accB.ID,
				Amount:        one,
				Purpose:       "svc",
			})
			if err != nil {
				t.Errorf("transfer: %v", err)
			}
		}()
	}
	wg.Wait()

	balA, _ := ledger.Treasury.GetBalance(ctx, accA.ID)
	balB, _ := ledger.Treasury.GetBalance(ctx, accB.ID)
	if balA.String() != "980" || balB.String() != "20" {
		t.Fatalf("balances = %s, %s", balA, balB)
	}
	ids, err := ledger.Treasury.PaymentIDsForAccount(ctx, accB.ID)
	if err != nil {
		t.Fatalf("payment ids: %v", err)
	}
	for i, id := range ids {
		if id != uint64(i) {
			t.Fatalf("payment ids not sequential: %v", ids)
		}
	}

	events, err := ledger.ListEvents(ctx, 0, 0)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	// 2 registrations, 2 accounts, 1 funding, 20 payments.
	if len(events) != 25 {
		t.Fatalf("expected 25 events, got %d", len(events))
	}
}
