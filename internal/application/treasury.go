package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

type TreasuryService struct {
	l *Ledger
}

// CreateAccount opens the single treasury account an agent may hold. The
// agent id is not checked against the identity registry.
func (s *TreasuryService) CreateAccount(ctx context.Context, agentID uint64, owner common.Address) (domain.TreasuryAccount, error) {
	if owner == (common.Address{}) {
		return domain.TreasuryAccount{}, domain.ErrInvalidOwner
	}
	var out domain.TreasuryAccount
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		_, err := tx.Treasury().GetAccountIDByAgent(ctx, agentID)
		switch {
		case err == nil:
			return fmt.Errorf("agent %d: %w", agentID, domain.ErrAccountExists)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		out, err = tx.Treasury().CreateAccount(ctx, domain.TreasuryAccount{
			AgentID:   agentID,
			Owner:     owner,
			CreatedAt: rec.now,
			Active:    true,
		})
		if err != nil {
			return err
		}
		rec.emit(domain.EventAccountCreated, ptr(agentID), ptr(out.ID), nil, out)
		return nil
	})
	if err != nil {
		return domain.TreasuryAccount{}, err
	}
	return out, nil
}

// Fund credits an account with value arriving from outside the ledger. Anyone
// may fund, and inactive accounts still accept funds.
func (s *TreasuryService) Fund(ctx context.Context, accountID uint64, amount domain.Amount) (domain.TreasuryAccount, error) {
	release := s.l.locks.acquire(accountID)
	defer release()

	var out domain.TreasuryAccount
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		account, err := loadAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if amount == 0 {
			return domain.ErrZeroAmount
		}
		totals, err := tx.Treasury().GetTotals(ctx)
		if err != nil {
			return err
		}
		if totals.TotalFunded, err = totals.TotalFunded.Add(amount); err != nil {
			return err
		}
		if totals.TotalBalance, err = totals.TotalBalance.Add(amount); err != nil {
			return err
		}
		if account.Balance, err = account.Balance.Add(amount); err != nil {
			return err
		}
		if err := tx.Treasury().UpdateAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.Treasury().SaveTotals(ctx, totals); err != nil {
			return err
		}
		rec.emit(domain.EventAccountFunded, ptr(account.AgentID), ptr(account.ID), nil, domain.FundingState{
			Account: account,
			Amount:  amount,
			Totals:  totals,
		})
		out = account
		return nil
	})
	if err != nil {
		return domain.TreasuryAccount{}, err
	}
	return out, nil
}

type TransferInput struct {
	Caller        common.Address
	FromAccountID uint64
	ToAccountID   uint64
	Amount        domain.Amount
	Purpose       string
	ReceiptHash   string
}

// Transfer moves value between two active accounts and records the payment.
// The caller must own the source account or hold the operator grant. A
// transfer to the same account is recorded but leaves the balance unchanged.
func (s *TreasuryService) Transfer(ctx context.Context, in TransferInput) (domain.PaymentRecord, error) {
	release := s.l.locks.acquire(in.FromAccountID, in.ToAccountID)
	defer release()

	var out domain.PaymentRecord
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		from, err := loadActiveAccount(ctx, tx, in.FromAccountID)
		if err != nil {
			return err
		}
		to, err := loadActiveAccount(ctx, tx, in.ToAccountID)
		if err != nil {
			return err
		}
		if in.Amount == 0 {
			return domain.ErrZeroAmount
		}
		if in.Caller != from.Owner {
			operator, err := tx.Treasury().IsOperator(ctx, in.Caller)
			if err != nil {
				return err
			}
			if !operator {
				return fmt.Errorf("%w: %s may not spend from account %d", domain.ErrUnauthorized, in.Caller.Hex(), from.ID)
			}
		}
		if from.Balance < in.Amount {
			return fmt.Errorf("%w: account %d holds %s", domain.ErrInsufficientBalance, from.ID, from.Balance)
		}

		from.Balance -= in.Amount
		if to.ID == from.ID {
			to = from
		}
		if to.Balance, err = to.Balance.Add(in.Amount); err != nil {
			return err
		}
		if to.ID == from.ID {
			from = to
		}
		if err := tx.Treasury().UpdateAccount(ctx, from); err != nil {
			return err
		}
		if to.ID != from.ID {
			if err := tx.Treasury().UpdateAccount(ctx, to); err != nil {
				return err
			}
		}

		out, err = tx.Treasury().CreatePayment(ctx, domain.PaymentRecord{
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
			Amount:        in.Amount,
			Purpose:       in.Purpose,
			ReceiptHash:   in.ReceiptHash,
			CreatedAt:     rec.now,
		})
		if err != nil {
			return err
		}
		rec.emit(domain.EventPaymentExecuted, ptr(from.AgentID), ptr(from.ID), ptr(out.ID), domain.PaymentState{
			Payment: out,
			From:    from,
			To:      to,
		})
		return nil
	})
	if err != nil {
		return domain.PaymentRecord{}, err
	}
	return out, nil
}

// Withdraw sends value out of the ledger to recipient. Only the account owner
// may withdraw; operators cannot. Inactive accounts can still be drained.
func (s *TreasuryService) Withdraw(ctx context.Context, caller common.Address, accountID uint64, recipient common.Address, amount domain.Amount) (domain.TreasuryAccount, error) {
	release := s.l.locks.acquire(accountID)
	defer release()

	var out domain.TreasuryAccount
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		account, err := loadAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if amount == 0 {
			return domain.ErrZeroAmount
		}
		if recipient == (common.Address{}) {
			return domain.ErrInvalidRecipient
		}
		if caller != account.Owner {
			return fmt.Errorf("%w: %s does not own account %d", domain.ErrUnauthorized, caller.Hex(), account.ID)
		}
		if account.Balance < amount {
			return fmt.Errorf("%w: account %d holds %s", domain.ErrInsufficientBalance, account.ID, account.Balance)
		}

		totals, err := tx.Treasury().GetTotals(ctx)
		if err != nil {
			return err
		}
		if totals.TotalWithdrawn, err = totals.TotalWithdrawn.Add(amount); err != nil {
			return err
		}
		totals.TotalBalance -= amount
		account.Balance -= amount

		if err := tx.Treasury().UpdateAccount(ctx, account); err != nil {
			return err
		}
		if err := tx.Treasury().SaveTotals(ctx, totals); err != nil {
			return err
		}
		rec.emit(domain.EventWithdrawn, ptr(account.AgentID), ptr(account.ID), nil, domain.WithdrawalState{
			Account:   account,
			Recipient: recipient,
			Amount:    amount,
			Totals:    totals,
		})
		out = account
		return nil
	})
	if err != nil {
		return domain.TreasuryAccount{}, err
	}
	return out, nil
}

// SetAccountOwner hands custody of an account to a new address without
// touching the agent's identity.
func (s *TreasuryService) SetAccountOwner(ctx context.Context, caller common.Address, accountID uint64, owner common.Address) (domain.TreasuryAccount, error) {
	if owner == (common.Address{}) {
		return domain.TreasuryAccount{}, domain.ErrInvalidOwner
	}
	return s.mutateOwned(ctx, caller, accountID, domain.EventAccountOwnerChanged, func(account *domain.TreasuryAccount) error {
		account.Owner = owner
		return nil
	})
}

func (s *TreasuryService) DeactivateAccount(ctx context.Context, caller common.Address, accountID uint64) (domain.TreasuryAccount, error) {
	return s.mutateOwned(ctx, caller, accountID, domain.EventAccountDeactivated, func(account *domain.TreasuryAccount) error {
		if !account.Active {
			return fmt.Errorf("account %d: %w", account.ID, domain.ErrAlreadyInactive)
		}
		account.Active = false
		return nil
	})
}

func (s *TreasuryService) ReactivateAccount(ctx context.Context, caller common.Address, accountID uint64) (domain.TreasuryAccount, error) {
	return s.mutateOwned(ctx, caller, accountID, domain.EventAccountReactivated, func(account *domain.TreasuryAccount) error {
		if account.Active {
			return fmt.Errorf("account %d: %w", account.ID, domain.ErrAlreadyActive)
		}
		account.Active = true
		return nil
	})
}

func (s *TreasuryService) mutateOwned(ctx context.Context, caller common.Address, accountID uint64, kind domain.EventKind, mutate func(*domain.TreasuryAccount) error) (domain.TreasuryAccount, error) {
	release := s.l.locks.acquire(accountID)
	defer release()

	var out domain.TreasuryAccount
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		account, err := loadAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if caller != account.Owner {
			return fmt.Errorf("%w: %s does not own account %d", domain.ErrUnauthorized, caller.Hex(), account.ID)
		}
		if err := mutate(&account); err != nil {
			return err
		}
		if err := tx.Treasury().UpdateAccount(ctx, account); err != nil {
			return err
		}
		rec.emit(kind, ptr(account.AgentID), ptr(account.ID), nil, account)
		out = account
		return nil
	})
	if err != nil {
		return domain.TreasuryAccount{}, err
	}
	return out, nil
}

func (s *TreasuryService) GrantOperator(ctx context.Context, caller, operator common.Address) error {
	return s.setOperator(ctx, caller, operator, true)
}

func (s *TreasuryService) RevokeOperator(ctx context.Context, caller, operator common.Address) error {
	return s.setOperator(ctx, caller, operator, false)
}

func (s *TreasuryService) setOperator(ctx context.Context, caller, operator common.Address, enabled bool) error {
	admin := s.l.cfg.Admin
	if admin == (common.Address{}) || caller != admin {
		return fmt.Errorf("%w: %s is not the ledger admin", domain.ErrUnauthorized, caller.Hex())
	}
	if operator == (common.Address{}) {
		return domain.ErrInvalidOwner
	}
	return s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		if err := tx.Treasury().SetOperator(ctx, operator, enabled); err != nil {
			return err
		}
		kind := domain.EventOperatorRevoked
		if enabled {
			kind = domain.EventOperatorGranted
		}
		rec.emit(kind, nil, nil, nil, domain.OperatorState{Operator: operator, Enabled: enabled})
		return nil
	})
}

func (s *TreasuryService) IsOperator(ctx context.Context, addr common.Address) (bool, error) {
	var ok bool
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		ok, err = tx.Treasury().IsOperator(ctx, addr)
		return err
	})
	return ok, err
}

func (s *TreasuryService) Operators(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Treasury().ListOperators(ctx)
		return err
	})
	return out, err
}

func (s *TreasuryService) GetAccount(ctx context.Context, accountID uint64) (domain.TreasuryAccount, error) {
	var out domain.TreasuryAccount
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = loadAccount(ctx, tx, accountID)
		return err
	})
	return out, err
}

// GetAccountIDForAgent returns NoAccount when the agent has none.
func (s *TreasuryService) GetAccountIDForAgent(ctx context.Context, agentID uint64) (uint64, error) {
	var out uint64
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		id, err := tx.Treasury().GetAccountIDByAgent(ctx, agentID)
		if errors.Is(err, domain.ErrNotFound) {
			out = domain.NoAccount
			return nil
		}
		out = id
		return err
	})
	return out, err
}

// GetBalance reports zero for unknown accounts.
func (s *TreasuryService) GetBalance(ctx context.Context, accountID uint64) (domain.Amount, error) {
	var out domain.Amount
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		account, err := tx.Treasury().GetAccount(ctx, accountID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		out = account.Balance
		return err
	})
	return out, err
}

func (s *TreasuryService) GetPayment(ctx context.Context, id uint64) (domain.PaymentRecord, error) {
	var out domain.PaymentRecord
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Treasury().GetPayment(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("payment %d: %w", id, domain.ErrNotFound)
		}
		return err
	})
	return out, err
}

// PaymentIDsForAccount lists every payment the account sent or received, in
// execution order.
func (s *TreasuryService) PaymentIDsForAccount(ctx context.Context, accountID uint64) ([]uint64, error) {
	var out []uint64
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Treasury().ListPaymentIDs(ctx, accountID)
		return err
	})
	return out, err
}

func (s *TreasuryService) Totals(ctx context.Context) (domain.LedgerTotals, error) {
	var out domain.LedgerTotals
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Treasury().GetTotals(ctx)
		return err
	})
	return out, err
}

func loadAccount(ctx context.Context, tx domain.LedgerTx, id uint64) (domain.TreasuryAccount, error) {
	if id == domain.NoAccount {
		return domain.TreasuryAccount{}, fmt.Errorf("account %d: %w", id, domain.ErrInvalidAccount)
	}
	account, err := tx.Treasury().GetAccount(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TreasuryAccount{}, fmt.Errorf("account %d: %w", id, domain.ErrInvalidAccount)
	}
	return account, err
}

func loadActiveAccount(ctx context.Context, tx domain.LedgerTx, id uint64) (domain.TreasuryAccount, error) {
	account, err := loadAccount(ctx, tx, id)
	if err != nil {
		return domain.TreasuryAccount{}, err
	}
	if !account.Active {
		return domain.TreasuryAccount{}, fmt.Errorf("account %d is inactive: %w", id, domain.ErrInvalidAccount)
	}
	return account, nil
}
