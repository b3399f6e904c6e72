package ledger

import (
	"context"
	"errors"

	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// OpenOrGet returns owner's vault, creating it with zero balances if absent.
//
// Repeating the call with the same arguments returns the same vault. A
// different address or mint for an existing owner, or an address already
// bound to another owner, is ConflictError.
func (l *Ledger) OpenOrGet(ctx context.Context, owner, vaultAddress, tokenMint string) (model.Vault, error) {
	if err := validateOwner(owner); err != nil {
		return model.Vault{}, err
	}
	if err := validateVaultAddresses(vaultAddress, tokenMint); err != nil {
		return model.Vault{}, err
	}

	var v model.Vault
	err := l.mutate(ctx, "open vault", owner, func(ctx context.Context, q *store.Queries) error {
		var err error
		v, err = l.openTx(ctx, q, owner, vaultAddress, tokenMint)
		return err
	})
	return v, err
}

func (l *Ledger) openTx(ctx context.Context, q *store.Queries, owner, vaultAddress, tokenMint string) (model.Vault, error) {
	existing, err := q.GetVault(ctx, owner)
	switch {
	case err == nil:
		if existing.VaultAddress != vaultAddress {
			return model.Vault{}, fault.Conflict("vault address %s does not match existing %s", vaultAddress, existing.VaultAddress).WithOwner(owner)
		}
		if existing.TokenMint != tokenMint {
			return model.Vault{}, fault.Conflict("token mint %s does not match existing %s", tokenMint, existing.TokenMint).WithOwner(owner)
		}
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return model.Vault{}, err
	}

	if other, err := q.GetVaultByAddress(ctx, vaultAddress); err == nil {
		return model.Vault{}, fault.Conflict("vault address %s already belongs to %s", vaultAddress, other.Owner).WithOwner(owner)
	} else if !errors.Is(err, store.ErrNotFound) {
		return model.Vault{}, err
	}

	now := l.clock.Now()
	v := model.Vault{
		ID:           l.ids.Generate(),
		Owner:        owner,
		VaultAddress: vaultAddress,
		TokenMint:    tokenMint,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := q.InsertVault(ctx, v); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.Vault{}, fault.Conflict("vault address %s already bound", vaultAddress).WithOwner(owner)
		}
		return model.Vault{}, err
	}

	l.logger.Info("vault opened", "owner", owner, "vault_address", vaultAddress, "token_mint", tokenMint)
	return v, nil
}

func validateVaultAddresses(vaultAddress, tokenMint string) error {
	if err := model.ValidateAddress(vaultAddress); err != nil {
		return fault.Validation("vault address: %v", err)
	}
	if err := model.ValidateAddress(tokenMint); err != nil {
		return fault.Validation("token mint: %v", err)
	}
	return nil
}
