package ledger

import (
	"context"

	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
	"github.com/roach88/vaultledger/internal/tracker"
)

// Deposit is a finalized on-chain deposit into an owner's vault.
type Deposit struct {
	Owner     string
	Signature string
	Amount    int64
	Slot      int64
	BlockTime int64

	// VaultAddress and TokenMint open the vault when the owner has none.
	// Both are optional for owners that already have a vault.
	VaultAddress string
	TokenMint    string
}

// RecordDeposit credits a finalized deposit exactly once per signature.
//
// A signature already confirmed for the same owner and amount returns the
// current vault without changes. A pending record (see ObserveDeposit) is
// completed. A failed signature, or one recorded for another type, owner or
// amount, is ConflictError.
func (l *Ledger) RecordDeposit(ctx context.Context, d Deposit) (model.Vault, error) {
	if err := validateOwner(d.Owner); err != nil {
		return model.Vault{}, err
	}
	if err := validateSignature(d.Signature); err != nil {
		return model.Vault{}, err
	}
	if err := validateAmount(d.Amount); err != nil {
		return model.Vault{}, err
	}
	if d.VaultAddress != "" || d.TokenMint != "" {
		if err := validateVaultAddresses(d.VaultAddress, d.TokenMint); err != nil {
			return model.Vault{}, err
		}
	}

	var v model.Vault
	err := l.mutateSigned(ctx, "record deposit", d.Owner, d.Signature, func(ctx context.Context, q *store.Queries) error {
		var err error
		v, err = l.recordDepositTx(ctx, q, d)
		return err
	})
	return v, err
}

func (l *Ledger) recordDepositTx(ctx context.Context, q *store.Queries, d Deposit) (model.Vault, error) {
	v, err := l.loadVault(ctx, q, d.Owner)
	if fault.IsValidation(err) && d.VaultAddress != "" {
		v, err = l.openTx(ctx, q, d.Owner, d.VaultAddress, d.TokenMint)
	}
	if err != nil {
		return model.Vault{}, err
	}

	rec, err := l.tracker.GetTx(ctx, q, d.Signature)
	switch {
	case fault.IsNotFound(err):
		if _, err := l.tracker.BeginTx(ctx, q, d.Signature, model.TxDeposit, d.Owner, d.Amount); err != nil {
			return model.Vault{}, err
		}
	case err != nil:
		return model.Vault{}, err
	default:
		if rec.Type != model.TxDeposit || rec.Owner != d.Owner || rec.Amount != d.Amount {
			return model.Vault{}, fault.Conflict("signature already recorded as %s of %d for %q", rec.Type, rec.Amount, rec.Owner).
				WithOwner(d.Owner).WithSignature(d.Signature)
		}
		switch rec.Status {
		case model.TxConfirmed:
			l.logger.Info("deposit already recorded", "owner", d.Owner, "signature", d.Signature, "amount", d.Amount)
			return v, nil
		case model.TxFailed:
			return model.Vault{}, fault.Conflict("deposit signature is recorded as failed").
				WithOwner(d.Owner).WithSignature(d.Signature)
		}
	}

	if _, err := l.tracker.CompleteTx(ctx, q, d.Signature, tracker.Outcome{
		Status:    model.TxConfirmed,
		Slot:      d.Slot,
		BlockTime: d.BlockTime,
	}); err != nil {
		return model.Vault{}, err
	}

	if err := add(&v.TotalBalance, d.Amount, "total balance"); err != nil {
		return model.Vault{}, err
	}
	if err := add(&v.AvailableBalance, d.Amount, "available balance"); err != nil {
		return model.Vault{}, err
	}
	if err := add(&v.TotalDeposited, d.Amount, "total deposited"); err != nil {
		return model.Vault{}, err
	}
	if v, err = l.saveVault(ctx, q, v); err != nil {
		return model.Vault{}, err
	}

	if _, err := l.events.Append(ctx, q, d.Owner, model.EventDeposit, model.Payload{
		"amount":    d.Amount,
		"signature": d.Signature,
		"slot":      d.Slot,
	}); err != nil {
		return model.Vault{}, err
	}

	l.logger.Info("deposit recorded", "owner", d.Owner, "signature", d.Signature, "amount", d.Amount)
	return v, nil
}

// ObserveDeposit registers a deposit seen on-chain but not yet finalized.
//
// Balances do not change; a later RecordDeposit with the same signature
// credits it. Observing the same deposit twice is a no-op. The vault must
// already exist.
func (l *Ledger) ObserveDeposit(ctx context.Context, owner, signature string, amount int64) (model.TransactionRecord, error) {
	if err := validateOwner(owner); err != nil {
		return model.TransactionRecord{}, err
	}
	if err := validateSignature(signature); err != nil {
		return model.TransactionRecord{}, err
	}
	if err := validateAmount(amount); err != nil {
		return model.TransactionRecord{}, err
	}

	var rec model.TransactionRecord
	err := l.mutateSigned(ctx, "observe deposit", owner, signature, func(ctx context.Context, q *store.Queries) error {
		if _, err := l.loadVault(ctx, q, owner); err != nil {
			return err
		}

		existing, err := l.tracker.GetTx(ctx, q, signature)
		if err == nil {
			if existing.Type == model.TxDeposit && existing.Owner == owner && existing.Amount == amount {
				rec = existing
				return nil
			}
			return fault.DuplicateSignature(signature).WithOwner(owner)
		}
		if !fault.IsNotFound(err) {
			return err
		}

		rec, err = l.tracker.BeginTx(ctx, q, signature, model.TxDeposit, owner, amount)
		return err
	})
	return rec, err
}

// RejectDeposit settles an observed deposit that failed on-chain. The vault
// is untouched and no event is written since no funds moved.
//
// Rejecting an already failed deposit is a no-op; a confirmed one is
// InvalidStateError.
func (l *Ledger) RejectDeposit(ctx context.Context, owner, signature, errorMessage string) (model.TransactionRecord, error) {
	if err := validateOwner(owner); err != nil {
		return model.TransactionRecord{}, err
	}
	if err := validateSignature(signature); err != nil {
		return model.TransactionRecord{}, err
	}

	var rec model.TransactionRecord
	err := l.mutateSigned(ctx, "reject deposit", owner, signature, func(ctx context.Context, q *store.Queries) error {
		var err error
		if rec, err = l.tracker.GetTx(ctx, q, signature); err != nil {
			return err
		}
		if rec.Type != model.TxDeposit || rec.Owner != owner {
			return fault.Conflict("signature is recorded as %s for %q", rec.Type, rec.Owner).
				WithOwner(owner).WithSignature(signature)
		}
		switch rec.Status {
		case model.TxFailed:
			return nil
		case model.TxConfirmed:
			return fault.InvalidState("deposit is already confirmed").WithOwner(owner).WithSignature(signature)
		}

		rec, err = l.tracker.CompleteTx(ctx, q, signature, tracker.Outcome{
			Status:       model.TxFailed,
			ErrorMessage: errorMessage,
		})
		return err
	})
	if err != nil {
		return model.TransactionRecord{}, err
	}

	l.logger.Info("deposit rejected", "owner", owner, "signature", signature, "error", errorMessage)
	return rec, nil
}
