package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var owner = common.HexToAddress("0x0000000000000000000000000000000000000001")

func TestFailedUpdateLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		if _, err := tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{Owner: owner, DID: "did:a"}); err != nil {
			return err
		}
		acct, err := tx.Treasury().CreateAccount(ctx, domain.TreasuryAccount{AgentID: 0, Owner: owner, Active: true})
		if err != nil {
			return err
		}
		acct.Balance = 500
		if err := tx.Treasury().UpdateAccount(ctx, acct); err != nil {
			return err
		}
		if _, err := tx.Treasury().CreatePayment(ctx, domain.PaymentRecord{FromAccountID: acct.ID, ToAccountID: acct.ID, Amount: 1}); err != nil {
			return err
		}
		if err := tx.Treasury().SaveTotals(ctx, domain.LedgerTotals{TotalFunded: 500, TotalBalance: 500}); err != nil {
			return err
		}
		if err := tx.Treasury().SetOperator(ctx, owner, true); err != nil {
			return err
		}
		if err := tx.Reputation().SaveReputation(ctx, domain.ReputationState{AgentID: 0, TotalScore: 4, FeedbackCount: 1}); err != nil {
			return err
		}
		if _, err := tx.Events().AppendEvent(ctx, domain.Event{Kind: domain.EventAgentRegistered}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.Identities().GetIdentityIDByDID(ctx, "did:a")
		require.ErrorIs(t, err, domain.ErrNotFound)
		_, err = tx.Treasury().GetAccount(ctx, 1)
		require.ErrorIs(t, err, domain.ErrNotFound)
		ids, err := tx.Treasury().ListPaymentIDs(ctx, 1)
		require.NoError(t, err)
		require.Empty(t, ids)
		totals, err := tx.Treasury().GetTotals(ctx)
		require.NoError(t, err)
		require.Zero(t, totals)
		ok, err := tx.Treasury().IsOperator(ctx, owner)
		require.NoError(t, err)
		require.False(t, ok)
		rep, err := tx.Reputation().GetReputation(ctx, 0)
		require.NoError(t, err)
		require.Zero(t, rep.FeedbackCount)
		events, err := tx.Events().ListEvents(ctx, 0, 0)
		require.NoError(t, err)
		require.Empty(t, events)
		return nil
	})
	require.NoError(t, err)

	// Counters were rewound along with the rows.
	err = s.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		identity, err := tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{Owner: owner, DID: "did:b"})
		require.NoError(t, err)
		require.Equal(t, uint64(0), identity.ID)
		acct, err := tx.Treasury().CreateAccount(ctx, domain.TreasuryAccount{AgentID: 0, Owner: owner})
		require.NoError(t, err)
		require.Equal(t, uint64(1), acct.ID)
		ev, err := tx.Events().AppendEvent(ctx, domain.Event{Kind: domain.EventAgentRegistered})
		require.NoError(t, err)
		require.Equal(t, uint64(1), ev.Seq)
		return nil
	})
	require.NoError(t, err)
}

func TestUniquenessIsEnforced(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{DID: "did:a"})
		require.NoError(t, err)
		_, err = tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{DID: "did:a"})
		require.ErrorIs(t, err, domain.ErrDuplicateDID)

		_, err = tx.Treasury().CreateAccount(ctx, domain.TreasuryAccount{AgentID: 3})
		require.NoError(t, err)
		_, err = tx.Treasury().CreateAccount(ctx, domain.TreasuryAccount{AgentID: 3})
		require.ErrorIs(t, err, domain.ErrAccountExists)
		return nil
	})
	require.NoError(t, err)
}

func TestViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{DID: "did:a"})
		return err
	})
	require.ErrorIs(t, err, errReadOnly)
}

func TestEventsPageBySeq(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Update(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		for i := 0; i < 5; i++ {
			if _, err := tx.Events().AppendEvent(ctx, domain.Event{Kind: domain.EventAccountFunded}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		page, err := tx.Events().ListEvents(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.Equal(t, uint64(3), page[0].Seq)
		require.Equal(t, uint64(4), page[1].Seq)

		tail, err := tx.Events().ListEvents(ctx, 5, 10)
		require.NoError(t, err)
		require.Empty(t, tail)
		return nil
	})
	require.NoError(t, err)
}
