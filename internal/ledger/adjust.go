package ledger

import (
	"context"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// Adjust applies an operator correction of delta to the available and total
// balances. A negative delta needs that much available.
func (l *Ledger) Adjust(ctx context.Context, owner string, delta int64, reason, actor string) (model.Vault, error) {
	if err := validateOwner(owner); err != nil {
		return model.Vault{}, err
	}
	if delta == 0 {
		return model.Vault{}, fault.Validation("delta must not be zero")
	}
	if reason == "" {
		return model.Vault{}, fault.Validation("reason is required")
	}
	if actor == "" {
		return model.Vault{}, fault.Validation("actor is required")
	}

	var before, after model.Vault
	err := l.mutate(ctx, "adjust balance", owner, func(ctx context.Context, q *store.Queries) error {
		var err error
		if before, err = l.loadVault(ctx, q, owner); err != nil {
			return err
		}
		if delta < 0 && before.AvailableBalance < -delta {
			return fault.InsufficientFunds(owner, -delta, before.AvailableBalance)
		}

		v := before
		if err := add(&v.TotalBalance, delta, "total balance"); err != nil {
			return err
		}
		if err := add(&v.AvailableBalance, delta, "available balance"); err != nil {
			return err
		}
		if after, err = l.saveVault(ctx, q, v); err != nil {
			return err
		}

		_, err = l.events.Append(ctx, q, owner, model.EventAdjustment, model.Payload{
			"delta":  delta,
			"reason": reason,
			"actor":  actor,
		})
		return err
	})
	if err != nil {
		return model.Vault{}, err
	}

	l.logger.Warn("balance adjusted", "owner", owner, "delta", delta, "reason", reason, "actor", actor)
	l.recorder.Record(ctx, model.AuditEntry{
		Actor:    actor,
		Action:   audit.ActionAdjust,
		Target:   owner,
		Before:   balanceSnapshot(before),
		After:    balanceSnapshot(after),
		Metadata: model.Payload{"delta": delta, "reason": reason},
	})
	return after, nil
}
