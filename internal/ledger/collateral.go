package ledger

import (
	"context"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// LockCollateral moves amount from available to locked on behalf of an
// authorized program.
//
// The gate is consulted before anything else; an inactive program is
// UnauthorizedError with nothing written.
func (l *Ledger) LockCollateral(ctx context.Context, owner, program string, amount int64) (model.Vault, error) {
	if err := l.checkCollateral(ctx, owner, program, amount); err != nil {
		return model.Vault{}, err
	}

	var before, after model.Vault
	var held int64
	err := l.mutate(ctx, "lock collateral", owner, func(ctx context.Context, q *store.Queries) error {
		var err error
		if before, err = l.loadVault(ctx, q, owner); err != nil {
			return err
		}
		if before.AvailableBalance < amount {
			return fault.InsufficientFunds(owner, amount, before.AvailableBalance)
		}

		lock, err := q.GetCollateralLock(ctx, owner, program)
		if err != nil {
			return err
		}
		if err := add(&lock.Amount, amount, "collateral lock"); err != nil {
			return err
		}

		v := before
		if err := moveToLocked(&v, amount); err != nil {
			return err
		}
		if after, err = l.saveVault(ctx, q, v); err != nil {
			return err
		}

		lock.UpdatedAt = after.UpdatedAt
		if err := q.UpsertCollateralLock(ctx, lock); err != nil {
			return err
		}
		held = lock.Amount

		_, err = l.events.Append(ctx, q, owner, model.EventLock, model.Payload{
			"amount":  amount,
			"program": program,
		})
		return err
	})
	if err != nil {
		return model.Vault{}, err
	}

	l.logger.Info("collateral locked", "owner", owner, "program", program, "amount", amount, "held", held)
	l.recorder.Record(ctx, model.AuditEntry{
		Actor:    program,
		Action:   audit.ActionLockCollateral,
		Target:   owner,
		Before:   balanceSnapshot(before),
		After:    balanceSnapshot(after),
		Metadata: model.Payload{"program": program, "amount": amount, "held": held},
	})
	return after, nil
}

// UnlockCollateral returns amount held by program to the available balance.
//
// A program may only release what it locked itself; anything more is
// InvalidStateError.
func (l *Ledger) UnlockCollateral(ctx context.Context, owner, program string, amount int64) (model.Vault, error) {
	if err := l.checkCollateral(ctx, owner, program, amount); err != nil {
		return model.Vault{}, err
	}

	var before, after model.Vault
	var held int64
	err := l.mutate(ctx, "unlock collateral", owner, func(ctx context.Context, q *store.Queries) error {
		var err error
		if before, err = l.loadVault(ctx, q, owner); err != nil {
			return err
		}

		lock, err := q.GetCollateralLock(ctx, owner, program)
		if err != nil {
			return err
		}
		if lock.Amount < amount {
			return fault.InvalidState("program %s holds %d, cannot release %d", program, lock.Amount, amount).WithOwner(owner)
		}
		lock.Amount -= amount

		v := before
		if err := add(&v.LockedBalance, -amount, "locked balance"); err != nil {
			return err
		}
		if err := add(&v.AvailableBalance, amount, "available balance"); err != nil {
			return err
		}
		if after, err = l.saveVault(ctx, q, v); err != nil {
			return err
		}

		lock.UpdatedAt = after.UpdatedAt
		if err := q.UpsertCollateralLock(ctx, lock); err != nil {
			return err
		}
		held = lock.Amount

		_, err = l.events.Append(ctx, q, owner, model.EventUnlock, model.Payload{
			"amount":  amount,
			"program": program,
		})
		return err
	})
	if err != nil {
		return model.Vault{}, err
	}

	l.logger.Info("collateral unlocked", "owner", owner, "program", program, "amount", amount, "held", held)
	l.recorder.Record(ctx, model.AuditEntry{
		Actor:    program,
		Action:   audit.ActionUnlockCollateral,
		Target:   owner,
		Before:   balanceSnapshot(before),
		After:    balanceSnapshot(after),
		Metadata: model.Payload{"program": program, "amount": amount, "held": held},
	})
	return after, nil
}

func (l *Ledger) checkCollateral(ctx context.Context, owner, program string, amount int64) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if err := model.ValidateAddress(program); err != nil {
		return fault.Validation("program: %v", err)
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	return l.gate.Require(ctx, program)
}
