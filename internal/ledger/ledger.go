// Package ledger is the authoritative off-chain record of vault balances.
//
// Every mutating operation follows the same shape:
//
//  1. validate inputs (nothing is written on failure)
//  2. take the per-owner lock
//  3. in one store transaction: read current state, check the invariant,
//     apply the delta with a version-checked update, transition the
//     transaction record, append the event
//  4. commit, then audit privileged operations
//
// No network I/O happens inside step 3, and once the transaction starts it
// runs to completion regardless of caller cancellation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/authz"
	"github.com/roach88/vaultledger/internal/eventlog"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/keylock"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
	"github.com/roach88/vaultledger/internal/tracker"
)

// Ledger applies balance operations to vaults.
type Ledger struct {
	store    *store.Store
	events   *eventlog.Log
	tracker  *tracker.Tracker
	locker   keylock.Locker
	gate     *authz.Gate
	recorder *audit.Recorder
	ids      model.IDGenerator
	clock    model.Clock
	logger   *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocker sets the per-owner lock. Defaults to an in-process keyed mutex.
func WithLocker(l keylock.Locker) Option {
	return func(lg *Ledger) { lg.locker = l }
}

// WithGate sets the authorization gate used by collateral operations.
func WithGate(g *authz.Gate) Option {
	return func(lg *Ledger) { lg.gate = g }
}

// WithRecorder sets the audit recorder for privileged operations.
func WithRecorder(r *audit.Recorder) Option {
	return func(lg *Ledger) { lg.recorder = r }
}

// WithIDGenerator sets the id source for vaults, events and tickets.
func WithIDGenerator(ids model.IDGenerator) Option {
	return func(lg *Ledger) { lg.ids = ids }
}

// WithClock sets the timestamp source.
func WithClock(c model.Clock) Option {
	return func(lg *Ledger) { lg.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(lg *Ledger) { lg.logger = l }
}

// New creates a Ledger over s.
func New(s *store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  s,
		ids:    model.UUIDv7Generator{},
		clock:  model.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.locker == nil {
		l.locker = keylock.NewLocal()
	}
	if l.gate == nil {
		l.gate = authz.New(s, authz.WithRecorder(l.recorder), authz.WithClock(l.clock), authz.WithLogger(l.logger))
	}
	l.events = eventlog.New(s, eventlog.WithIDGenerator(l.ids), eventlog.WithClock(l.clock))
	l.tracker = tracker.New(s, l.clock)
	return l
}

// Gate returns the authorization gate the ledger consults.
func (l *Ledger) Gate() *authz.Gate {
	return l.gate
}

// mutate runs fn as one atomic unit under owner's lock.
func (l *Ledger) mutate(ctx context.Context, op, owner string, fn func(ctx context.Context, q *store.Queries) error) error {
	return l.locker.WithLock(ctx, keylock.VaultKey(owner), func(ctx context.Context) error {
		// Cancellation only governs lock waiting; the unit itself completes.
		ctx = context.WithoutCancel(ctx)
		err := l.store.WithTx(ctx, func(q *store.Queries) error {
			return fn(ctx, q)
		})
		return l.translate(op, owner, err)
	})
}

// mutateSigned is mutate with the signature's lock also held, so deliveries
// of one signature for different owners cannot interleave. The vault lock is
// always taken first.
func (l *Ledger) mutateSigned(ctx context.Context, op, owner, signature string, fn func(ctx context.Context, q *store.Queries) error) error {
	return l.locker.WithLock(ctx, keylock.VaultKey(owner), func(ctx context.Context) error {
		return l.locker.WithLock(ctx, keylock.SignatureKey(signature), func(ctx context.Context) error {
			ctx = context.WithoutCancel(ctx)
			err := l.store.WithTx(ctx, func(q *store.Queries) error {
				return fn(ctx, q)
			})
			return l.translate(op, owner, err)
		})
	})
}

// translate maps storage failures onto the fault taxonomy and logs
// invariant violations.
func (l *Ledger) translate(op, owner string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, store.ErrBusy), errors.Is(err, store.ErrStale):
		err = fault.Transient(op, err).WithOwner(owner)
	case errors.Is(err, store.ErrConstraint):
		err = fault.InvalidState("%s rejected by storage constraint", op).WithOwner(owner).Wrap(err)
	case fault.CodeOf(err) == "":
		err = fmt.Errorf("%s: %w", op, err)
	}

	if fault.IsInvalidState(err) {
		l.logger.Error("invariant violation aborted operation", "op", op, "owner", owner, "error", err)
	}
	return err
}

// loadVault reads owner's vault inside q.
func (l *Ledger) loadVault(ctx context.Context, q *store.Queries, owner string) (model.Vault, error) {
	v, err := q.GetVault(ctx, owner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Vault{}, fault.Validation("unknown owner").WithOwner(owner)
		}
		return model.Vault{}, err
	}
	return v, nil
}

// saveVault persists v after checking the balance invariant.
func (l *Ledger) saveVault(ctx context.Context, q *store.Queries, v model.Vault) (model.Vault, error) {
	if !v.Balance().Consistent() {
		return model.Vault{}, fault.InvalidState("balance invariant violated: total=%d locked=%d available=%d",
			v.TotalBalance, v.LockedBalance, v.AvailableBalance).WithOwner(v.Owner)
	}
	v.UpdatedAt = l.clock.Now()
	return q.UpdateVaultBalances(ctx, v)
}

// add applies delta to *field, failing on overflow or a negative result.
func add(field *int64, delta int64, name string) error {
	sum, err := model.AddChecked(*field, delta)
	if err != nil {
		return fault.Validation("%s: %v", name, err)
	}
	if sum < 0 {
		return fault.InvalidState("%s would become negative (%d)", name, sum)
	}
	*field = sum
	return nil
}

func balanceSnapshot(v model.Vault) model.Payload {
	return model.Payload{
		"total":     v.TotalBalance,
		"locked":    v.LockedBalance,
		"available": v.AvailableBalance,
	}
}

func validateOwner(owner string) error {
	if err := model.ValidateAddress(owner); err != nil {
		return fault.Validation("owner: %v", err)
	}
	return nil
}

func validateSignature(signature string) error {
	if err := model.ValidateSignature(signature); err != nil {
		return fault.Validation("%v", err).WithSignature(signature)
	}
	return nil
}

func validateAmount(amount int64) error {
	if err := model.ValidateAmount(amount); err != nil {
		return fault.Validation("%v", err)
	}
	return nil
}
