package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/agentledger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

type IdentityService struct {
	l *Ledger
}

type RegisterInput struct {
	Owner     common.Address
	DID       string
	Role      string
	PublicKey []byte
}

func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (domain.AgentIdentity, error) {
	if strings.TrimSpace(in.DID) == "" {
		return domain.AgentIdentity{}, fmt.Errorf("did: %w", domain.ErrEmptyField)
	}
	if strings.TrimSpace(in.Role) == "" {
		return domain.AgentIdentity{}, fmt.Errorf("role: %w", domain.ErrEmptyField)
	}
	if len(in.PublicKey) == 0 {
		return domain.AgentIdentity{}, fmt.Errorf("public key: %w", domain.ErrEmptyField)
	}
	if in.Owner == (common.Address{}) {
		return domain.AgentIdentity{}, domain.ErrInvalidOwner
	}

	var out domain.AgentIdentity
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		_, err := tx.Identities().GetIdentityIDByDID(ctx, in.DID)
		switch {
		case err == nil:
			return fmt.Errorf("did %q: %w", in.DID, domain.ErrDuplicateDID)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		out, err = tx.Identities().CreateIdentity(ctx, domain.AgentIdentity{
			Owner:        in.Owner,
			DID:          in.DID,
			Role:         in.Role,
			PublicKey:    bytes.Clone(in.PublicKey),
			RegisteredAt: rec.now,
			Active:       true,
		})
		if err != nil {
			return err
		}
		rec.emit(domain.EventAgentRegistered, ptr(out.ID), nil, nil, out)
		return nil
	})
	if err != nil {
		return domain.AgentIdentity{}, err
	}
	return out, nil
}

func (s *IdentityService) Get(ctx context.Context, id uint64) (domain.AgentIdentity, error) {
	var out domain.AgentIdentity
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Identities().GetIdentity(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("agent %d: %w", id, domain.ErrNotFound)
		}
		return err
	})
	return out, err
}

// LookupByDID returns the id registered under did.
func (s *IdentityService) LookupByDID(ctx context.Context, did string) (uint64, error) {
	var id uint64
	err := s.l.view(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		id, err = tx.Identities().GetIdentityIDByDID(ctx, did)
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("did %q: %w", did, domain.ErrNotFound)
		}
		return err
	})
	return id, err
}

// IsRegistered reports whether did has ever been registered. Deactivated
// identities still count.
func (s *IdentityService) IsRegistered(ctx context.Context, did string) (bool, error) {
	_, err := s.LookupByDID(ctx, did)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *IdentityService) Deactivate(ctx context.Context, caller common.Address, id uint64) (domain.AgentIdentity, error) {
	return s.setActive(ctx, caller, id, false)
}

func (s *IdentityService) Reactivate(ctx context.Context, caller common.Address, id uint64) (domain.AgentIdentity, error) {
	return s.setActive(ctx, caller, id, true)
}

func (s *IdentityService) setActive(ctx context.Context, caller common.Address, id uint64, active bool) (domain.AgentIdentity, error) {
	var out domain.AgentIdentity
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		identity, err := s.ownedIdentity(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if identity.Active == active {
			if active {
				return fmt.Errorf("agent %d: %w", id, domain.ErrAlreadyActive)
			}
			return fmt.Errorf("agent %d: %w", id, domain.ErrAlreadyInactive)
		}
		identity.Active = active
		if err := tx.Identities().UpdateIdentity(ctx, identity); err != nil {
			return err
		}
		kind := domain.EventAgentDeactivated
		if active {
			kind = domain.EventAgentReactivated
		}
		rec.emit(kind, ptr(id), nil, nil, identity)
		out = identity
		return nil
	})
	if err != nil {
		return domain.AgentIdentity{}, err
	}
	return out, nil
}

// TransferOwnership hands the identity to newOwner. Under the follow-identity
// policy the agent's treasury account moves along with it, provided its
// custody had not already been given to someone else.
func (s *IdentityService) TransferOwnership(ctx context.Context, caller common.Address, id uint64, newOwner common.Address) (domain.AgentIdentity, error) {
	if newOwner == (common.Address{}) {
		return domain.AgentIdentity{}, domain.ErrInvalidOwner
	}

	follow := s.l.cfg.OwnershipPolicy == domain.OwnershipFollowIdentity
	if follow {
		accountID, err := s.l.Treasury.GetAccountIDForAgent(ctx, id)
		if err != nil {
			return domain.AgentIdentity{}, err
		}
		if accountID != domain.NoAccount {
			release := s.l.locks.acquire(accountID)
			defer release()
		}
	}

	var out domain.AgentIdentity
	err := s.l.update(ctx, func(ctx context.Context, tx domain.LedgerTx, rec *recorder) error {
		identity, err := s.ownedIdentity(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		previous := identity.Owner
		identity.Owner = newOwner
		if err := tx.Identities().UpdateIdentity(ctx, identity); err != nil {
			return err
		}
		rec.emit(domain.EventAgentOwnershipTransferred, ptr(id), nil, nil, domain.OwnershipState{
			Identity:      identity,
			PreviousOwner: previous,
		})
		out = identity

		if !follow {
			return nil
		}
		accountID, err := tx.Treasury().GetAccountIDByAgent(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		account, err := tx.Treasury().GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Owner != previous {
			return nil
		}
		account.Owner = newOwner
		if err := tx.Treasury().UpdateAccount(ctx, account); err != nil {
			return err
		}
		rec.emit(domain.EventAccountOwnerChanged, ptr(id), ptr(accountID), nil, account)
		return nil
	})
	if err != nil {
		return domain.AgentIdentity{}, err
	}
	return out, nil
}

func (s *IdentityService) ownedIdentity(ctx context.Context, tx domain.LedgerTx, caller common.Address, id uint64) (domain.AgentIdentity, error) {
	identity, err := tx.Identities().GetIdentity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AgentIdentity{}, fmt.Errorf("agent %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AgentIdentity{}, err
	}
	if identity.Owner != caller {
		return domain.AgentIdentity{}, fmt.Errorf("%w: %s does not own agent %d", domain.ErrUnauthorized, caller.Hex(), id)
	}
	return identity, nil
}
