// Package reconcile feeds on-chain outcomes into the ledger.
//
// The Driver is the notification contract: deposits and withdrawal outcomes
// arrive at least once and are applied exactly once. The Poller is the
// scheduled side: it asks a ChainClient about pending signatures, expires
// tickets that were never submitted and compares on-chain vault balances
// with the ledger.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/ledger"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/tracker"
)

const (
	DefaultRetryAttempts = 5
	DefaultRetryBase     = 50 * time.Millisecond
)

// Driver applies chain notifications to a Ledger.
type Driver struct {
	ledger   *ledger.Ledger
	logger   *slog.Logger
	attempts int
	base     time.Duration
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithRetry sets how often a TransientError is retried and the base delay of
// the exponential backoff.
func WithRetry(attempts int, base time.Duration) DriverOption {
	return func(d *Driver) {
		d.attempts = attempts
		d.base = base
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// NewDriver creates a Driver over l.
func NewDriver(l *ledger.Ledger, opts ...DriverOption) *Driver {
	d := &Driver{
		ledger:   l,
		logger:   slog.Default(),
		attempts: DefaultRetryAttempts,
		base:     DefaultRetryBase,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.attempts < 1 {
		d.attempts = 1
	}
	return d
}

// NotifyDeposit credits a finalized deposit. Redelivery is harmless.
func (d *Driver) NotifyDeposit(ctx context.Context, owner, signature string, amount, slot, blockTime int64) (model.Vault, error) {
	var v model.Vault
	err := d.retry(ctx, "notify deposit", func() error {
		var err error
		v, err = d.ledger.RecordDeposit(ctx, ledger.Deposit{
			Owner:     owner,
			Signature: signature,
			Amount:    amount,
			Slot:      slot,
			BlockTime: blockTime,
		})
		return err
	})
	return v, err
}

// NotifyWithdrawalOutcome settles the withdrawal registered under signature.
//
// A redelivered outcome for a record that already reached the same terminal
// state is a successful no-op. A contradictory outcome is InvalidStateError.
func (d *Driver) NotifyWithdrawalOutcome(ctx context.Context, signature string, outcome tracker.Outcome) (model.Vault, error) {
	if !outcome.Status.Terminal() {
		return model.Vault{}, fault.Validation("outcome status must be terminal, got %q", outcome.Status).WithSignature(signature)
	}

	var v model.Vault
	err := d.retry(ctx, "notify withdrawal outcome", func() error {
		rec, err := d.ledger.Transaction(ctx, signature)
		if err != nil {
			return err
		}
		if rec.Type != model.TxWithdraw {
			return fault.Conflict("signature is a %s, not a withdrawal", rec.Type).WithSignature(signature)
		}
		if rec.Status.Terminal() {
			v, err = d.settled(ctx, rec, outcome)
			return err
		}

		switch outcome.Status {
		case model.TxConfirmed:
			v, err = d.ledger.ConfirmWithdrawal(ctx, ledger.Confirmation{
				Owner:     rec.Owner,
				Signature: signature,
				Amount:    rec.Amount,
				Slot:      outcome.Slot,
				BlockTime: outcome.BlockTime,
				Fee:       outcome.Fee,
			})
		default:
			v, err = d.ledger.FailWithdrawal(ctx, rec.Owner, signature, outcome.ErrorMessage)
		}
		if fault.IsInvalidState(err) {
			// Settled concurrently between the lookup and the update.
			if again, gerr := d.ledger.Transaction(ctx, signature); gerr == nil && again.Status.Terminal() {
				v, err = d.settled(ctx, again, outcome)
			}
		}
		return err
	})
	return v, err
}

// settled handles an outcome for a record that is already terminal.
func (d *Driver) settled(ctx context.Context, rec model.TransactionRecord, outcome tracker.Outcome) (model.Vault, error) {
	if rec.Status != outcome.Status {
		err := fault.InvalidState("withdrawal is %s, notified %s", rec.Status, outcome.Status).
			WithOwner(rec.Owner).WithSignature(rec.Signature)
		d.logger.Error("contradictory withdrawal outcome", "owner", rec.Owner, "signature", rec.Signature,
			"recorded", rec.Status, "notified", outcome.Status)
		return model.Vault{}, err
	}
	d.logger.Debug("duplicate withdrawal outcome ignored", "owner", rec.Owner, "signature", rec.Signature, "status", rec.Status)
	return d.ledger.Vault(ctx, rec.Owner)
}
