package application

import (
	"context"
	"sync"
	"testing"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type treasuryFixture struct {
	l        *Ledger
	agentA   domain.AgentIdentity
	agentB   domain.AgentIdentity
	accountA domain.TreasuryAccount
	accountB domain.TreasuryAccount
}

func newTreasuryFixture(t *testing.T, cfg Config) treasuryFixture {
	t.Helper()
	ctx := context.Background()
	l := newTestLedger(t, cfg)
	f := treasuryFixture{l: l}
	f.agentA = registerAgent(t, l, alice, "did:agent:a")
	f.agentB = registerAgent(t, l, bob, "did:agent:b")

	var err error
	f.accountA, err = l.Treasury.CreateAccount(ctx, f.agentA.ID, alice)
	require.NoError(t, err)
	f.accountB, err = l.Treasury.CreateAccount(ctx, f.agentB.ID, bob)
	require.NoError(t, err)
	return f
}

func TestFundTransferAndInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	l := f.l
	require.Equal(t, uint64(1), f.accountA.ID)
	require.Equal(t, uint64(2), f.accountB.ID)

	_, err := l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "1000"))
	require.NoError(t, err)
	balance, err := l.Treasury.GetBalance(ctx, f.accountA.ID)
	require.NoError(t, err)
	require.Equal(t, "1000", balance.String())

	payment, err := l.Treasury.Transfer(ctx, TransferInput{
		Caller:        alice,
		FromAccountID: f.accountA.ID,
		ToAccountID:   f.accountB.ID,
		Amount:        mustAmount(t, "100"),
		Purpose:       "svc",
		ReceiptHash:   "0xr",
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), payment.ID)
	require.Equal(t, "svc", payment.Purpose)

	balanceA, _ := l.Treasury.GetBalance(ctx, f.accountA.ID)
	balanceB, _ := l.Treasury.GetBalance(ctx, f.accountB.ID)
	require.Equal(t, mustAmount(t, "900"), balanceA)
	require.Equal(t, mustAmount(t, "100"), balanceB)

	for _, id := range []uint64{f.accountA.ID, f.accountB.ID} {
		ids, err := l.Treasury.PaymentIDsForAccount(ctx, id)
		require.NoError(t, err)
		require.Equal(t, []uint64{payment.ID}, ids)
	}

	_, err = l.Treasury.Transfer(ctx, TransferInput{
		Caller:        alice,
		FromAccountID: f.accountA.ID,
		ToAccountID:   f.accountB.ID,
		Amount:        mustAmount(t, "2000"),
	})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	balanceA, _ = l.Treasury.GetBalance(ctx, f.accountA.ID)
	require.Equal(t, mustAmount(t, "900"), balanceA)

	_, err = l.Treasury.GetPayment(ctx, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransferValidationOrder(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	l := f.l
	_, err := l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "5"))
	require.NoError(t, err)

	cases := []struct {
		name string
		in   TransferInput
		want error
	}{
		{"unknown source", TransferInput{Caller: alice, FromAccountID: 9, ToAccountID: f.accountB.ID, Amount: 1}, domain.ErrInvalidAccount},
		{"unknown target", TransferInput{Caller: alice, FromAccountID: f.accountA.ID, ToAccountID: 9, Amount: 1}, domain.ErrInvalidAccount},
		{"no account", TransferInput{Caller: alice, FromAccountID: domain.NoAccount, ToAccountID: f.accountB.ID, Amount: 1}, domain.ErrInvalidAccount},
		{"zero amount", TransferInput{Caller: carol, FromAccountID: f.accountA.ID, ToAccountID: f.accountB.ID}, domain.ErrZeroAmount},
		{"stranger", TransferInput{Caller: carol, FromAccountID: f.accountA.ID, ToAccountID: f.accountB.ID, Amount: mustAmount(t, "99")}, domain.ErrUnauthorized},
		{"overdraw", TransferInput{Caller: alice, FromAccountID: f.accountA.ID, ToAccountID: f.accountB.ID, Amount: mustAmount(t, "99")}, domain.ErrInsufficientBalance},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Treasury.Transfer(ctx, tc.in)
			require.ErrorIs(t, err, tc.want)
		})
	}

	totals, err := l.Treasury.Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, mustAmount(t, "5"), totals.TotalBalance)
}

func TestSelfTransferKeepsBalance(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	_, err := f.l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "10"))
	require.NoError(t, err)

	payment, err := f.l.Treasury.Transfer(ctx, TransferInput{
		Caller:        alice,
		FromAccountID: f.accountA.ID,
		ToAccountID:   f.accountA.ID,
		Amount:        mustAmount(t, "4"),
	})
	require.NoError(t, err)

	balance, err := f.l.Treasury.GetBalance(ctx, f.accountA.ID)
	require.NoError(t, err)
	require.Equal(t, mustAmount(t, "10"), balance)

	ids, err := f.l.Treasury.PaymentIDsForAccount(ctx, f.accountA.ID)
	require.NoError(t, err)
	require.Equal(t, []uint64{payment.ID}, ids)
}

func TestOperatorMaySpendButNotWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{Admin: admin, Operators: []common.Address{carol}})
	l := f.l
	_, err := l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "50"))
	require.NoError(t, err)

	ok, err := l.Treasury.IsOperator(ctx, carol)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = l.Treasury.Transfer(ctx, TransferInput{
		Caller:        carol,
		FromAccountID: f.accountA.ID,
		ToAccountID:   f.accountB.ID,
		Amount:        mustAmount(t, "20"),
	})
	require.NoError(t, err)

	_, err = l.Treasury.Withdraw(ctx, carol, f.accountA.ID, carol, mustAmount(t, "1"))
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.ErrorIs(t, l.Treasury.RevokeOperator(ctx, alice, carol), domain.ErrUnauthorized)
	require.NoError(t, l.Treasury.RevokeOperator(ctx, admin, carol))

	_, err = l.Treasury.Transfer(ctx, TransferInput{
		Caller:        carol,
		FromAccountID: f.accountA.ID,
		ToAccountID:   f.accountB.ID,
		Amount:        mustAmount(t, "1"),
	})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, l.Treasury.GrantOperator(ctx, admin, bob))
	operators, err := l.Treasury.Operators(ctx)
	require.NoError(t, err)
	require.Equal(t, []common.Address{bob}, operators)
}

func TestBootstrapIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, Config{Operators: []common.Address{carol, common.Address{}}})
	require.NoError(t, l.Bootstrap(ctx))

	events, err := l.ListEvents(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, []domain.EventKind{domain.EventOperatorGranted}, eventKinds(events))
}

func TestWithdrawMaintainsTotals(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	l := f.l
	_, err := l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "12.5"))
	require.NoError(t, err)

	_, err = l.Treasury.Withdraw(ctx, alice, f.accountA.ID, common.Address{}, mustAmount(t, "1"))
	require.ErrorIs(t, err, domain.ErrInvalidRecipient)
	_, err = l.Treasury.Withdraw(ctx, alice, f.accountA.ID, alice, 0)
	require.ErrorIs(t, err, domain.ErrZeroAmount)
	_, err = l.Treasury.Withdraw(ctx, bob, f.accountA.ID, bob, mustAmount(t, "1"))
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = l.Treasury.Withdraw(ctx, alice, f.accountA.ID, alice, mustAmount(t, "13"))
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	account, err := l.Treasury.Withdraw(ctx, alice, f.accountA.ID, carol, mustAmount(t, "2.25"))
	require.NoError(t, err)
	require.Equal(t, "10.25", account.Balance.String())

	totals, err := l.Treasury.Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, "12.5", totals.TotalFunded.String())
	require.Equal(t, "2.25", totals.TotalWithdrawn.String())
	require.Equal(t, "10.25", totals.TotalBalance.String())
}

func TestInactiveAccountRules(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	l := f.l
	_, err := l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "10"))
	require.NoError(t, err)

	_, err = l.Treasury.DeactivateAccount(ctx, bob, f.accountA.ID)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = l.Treasury.DeactivateAccount(ctx, alice, f.accountA.ID)
	require.NoError(t, err)
	_, err = l.Treasury.DeactivateAccount(ctx, alice, f.accountA.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyInactive)

	_, err = l.Treasury.Transfer(ctx, TransferInput{Caller: alice, FromAccountID: f.accountA.ID, ToAccountID: f.accountB.ID, Amount: 1})
	require.ErrorIs(t, err, domain.ErrInvalidAccount)
	_, err = l.Treasury.Transfer(ctx, TransferInput{Caller: bob, FromAccountID: f.accountB.ID, ToAccountID: f.accountA.ID, Amount: 1})
	require.ErrorIs(t, err, domain.ErrInvalidAccount)

	_, err = l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "1"))
	require.NoError(t, err)
	_, err = l.Treasury.Withdraw(ctx, alice, f.accountA.ID, alice, mustAmount(t, "11"))
	require.NoError(t, err)

	_, err = l.Treasury.ReactivateAccount(ctx, alice, f.accountA.ID)
	require.NoError(t, err)
	_, err = l.Treasury.ReactivateAccount(ctx, alice, f.accountA.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyActive)
}

func TestCreateAccountRules(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	l := f.l

	_, err := l.Treasury.CreateAccount(ctx, f.agentA.ID, carol)
	require.ErrorIs(t, err, domain.ErrAccountExists)
	_, err = l.Treasury.CreateAccount(ctx, 42, common.Address{})
	require.ErrorIs(t, err, domain.ErrInvalidOwner)

	id, err := l.Treasury.GetAccountIDForAgent(ctx, f.agentB.ID)
	require.NoError(t, err)
	require.Equal(t, f.accountB.ID, id)
	id, err = l.Treasury.GetAccountIDForAgent(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, domain.NoAccount, id)

	_, err = l.Treasury.GetAccount(ctx, 42)
	require.ErrorIs(t, err, domain.ErrInvalidAccount)
	balance, err := l.Treasury.GetBalance(ctx, 42)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestFundOverflowIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	_, err := f.l.Treasury.Fund(ctx, f.accountA.ID, domain.MaxAmount)
	require.NoError(t, err)
	_, err = f.l.Treasury.Fund(ctx, f.accountB.ID, 1)
	require.ErrorIs(t, err, domain.ErrAmountOverflow)

	balance, err := f.l.Treasury.GetBalance(ctx, f.accountB.ID)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestConcurrentTransfersConserveValue(t *testing.T) {
	ctx := context.Background()
	f := newTreasuryFixture(t, Config{})
	l := f.l
	_, err := l.Treasury.Fund(ctx, f.accountA.ID, mustAmount(t, "100"))
	require.NoError(t, err)
	_, err = l.Treasury.Fund(ctx, f.accountB.ID, mustAmount(t, "100"))
	require.NoError(t, err)

	const rounds = 200
	unit := mustAmount(t, "1")
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = l.Treasury.Transfer(ctx, TransferInput{Caller: alice, FromAccountID: f.accountA.ID, ToAccountID: f.accountB.ID, Amount: unit})
		}()
		go func() {
			defer wg.Done()
			_, _ = l.Treasury.Transfer(ctx, TransferInput{Caller: bob, FromAccountID: f.accountB.ID, ToAccountID: f.accountA.ID, Amount: unit})
		}()
	}
	wg.Wait()

	a, err := l.Treasury.GetBalance(ctx, f.accountA.ID)
	require.NoError(t, err)
	b, err := l.Treasury.GetBalance(ctx, f.accountB.ID)
	require.NoError(t, err)
	require.Equal(t, mustAmount(t, "200"), a+b)

	totals, err := l.Treasury.Totals(ctx)
	require.NoError(t, err)
	require.Equal(t, a+b, totals.TotalBalance)

	// Payment ids are gap-free under contention.
	idsA, err := l.Treasury.PaymentIDsForAccount(ctx, f.accountA.ID)
	require.NoError(t, err)
	for i, id := range idsA {
		require.Equal(t, uint64(i), id)
	}
}
