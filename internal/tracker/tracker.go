// Package tracker records on-chain transactions by signature and enforces
// their state machine: pending → confirmed | failed, terminal states final.
//
// The *Tx variants run inside a caller's store transaction so a transition
// commits together with the balance change that depends on it.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// Outcome is the settlement of a pending transaction.
type Outcome struct {
	Status       model.TxStatus
	Slot         int64
	BlockTime    int64
	Fee          int64
	ErrorMessage string
}

// Tracker owns the transaction_logs records.
type Tracker struct {
	store *store.Store
	clock model.Clock
}

// New creates a Tracker. A nil clock uses the system clock.
func New(s *store.Store, clock model.Clock) *Tracker {
	if clock == nil {
		clock = model.SystemClock{}
	}
	return &Tracker{store: s, clock: clock}
}

// Begin registers signature as pending.
func (t *Tracker) Begin(ctx context.Context, signature string, typ model.TxType, owner string, amount int64) (model.TransactionRecord, error) {
	var rec model.TransactionRecord
	err := t.store.WithTx(ctx, func(q *store.Queries) error {
		var err error
		rec, err = t.BeginTx(ctx, q, signature, typ, owner, amount)
		return err
	})
	return rec, err
}

// BeginTx registers signature as pending inside q.
//
// Returns DuplicateSignatureError if any record exists for signature,
// whatever its state.
func (t *Tracker) BeginTx(ctx context.Context, q *store.Queries, signature string, typ model.TxType, owner string, amount int64) (model.TransactionRecord, error) {
	if err := model.ValidateSignature(signature); err != nil {
		return model.TransactionRecord{}, fault.Validation("%v", err).WithSignature(signature)
	}
	if !typ.Valid() {
		return model.TransactionRecord{}, fault.Validation("unknown transaction type %q", typ)
	}
	if amount < 0 {
		return model.TransactionRecord{}, fault.Validation("amount must not be negative, got %d", amount)
	}

	now := t.clock.Now()
	rec := model.TransactionRecord{
		Signature: signature,
		Owner:     owner,
		Type:      typ,
		Status:    model.TxPending,
		Amount:    amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := q.InsertTransaction(ctx, rec); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.TransactionRecord{}, fault.DuplicateSignature(signature)
		}
		return model.TransactionRecord{}, classify("begin transaction", err)
	}
	return rec, nil
}

// Complete moves a pending record to a terminal state.
func (t *Tracker) Complete(ctx context.Context, signature string, outcome Outcome) (model.TransactionRecord, error) {
	var rec model.TransactionRecord
	err := t.store.WithTx(ctx, func(q *store.Queries) error {
		var err error
		rec, err = t.CompleteTx(ctx, q, signature, outcome)
		return err
	})
	return rec, err
}

// CompleteTx moves a pending record to a terminal state inside q.
//
// Returns NotFoundError for a signature that was never begun (no direct jump
// to a terminal state) and AlreadyTerminalError for a record that is not
// pending.
func (t *Tracker) CompleteTx(ctx context.Context, q *store.Queries, signature string, outcome Outcome) (model.TransactionRecord, error) {
	if !outcome.Status.Terminal() {
		return model.TransactionRecord{}, fault.Validation("outcome status must be terminal, got %q", outcome.Status)
	}

	rec, err := t.GetTx(ctx, q, signature)
	if err != nil {
		return model.TransactionRecord{}, err
	}
	if !rec.Status.CanTransitionTo(outcome.Status) {
		return model.TransactionRecord{}, fault.AlreadyTerminal(signature, string(rec.Status))
	}

	rec.Status = outcome.Status
	rec.Slot = outcome.Slot
	rec.BlockTime = outcome.BlockTime
	rec.Fee = outcome.Fee
	rec.ErrorMessage = outcome.ErrorMessage
	rec.UpdatedAt = t.clock.Now()

	if err := q.CompleteTransaction(ctx, rec); err != nil {
		if errors.Is(err, store.ErrStale) {
			return model.TransactionRecord{}, fault.AlreadyTerminal(signature, "completed")
		}
		return model.TransactionRecord{}, classify("complete transaction", err)
	}
	return rec, nil
}

// Get returns the record for signature.
func (t *Tracker) Get(ctx context.Context, signature string) (model.TransactionRecord, error) {
	return t.GetTx(ctx, t.store.Queries, signature)
}

// GetTx returns the record for signature as seen by q.
func (t *Tracker) GetTx(ctx context.Context, q *store.Queries, signature string) (model.TransactionRecord, error) {
	rec, err := q.GetTransaction(ctx, signature)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.TransactionRecord{}, fault.NotFound("no transaction record").WithSignature(signature)
		}
		return model.TransactionRecord{}, classify("get transaction", err)
	}
	return rec, nil
}

// ListByOwner returns an owner's transaction history, newest first.
func (t *Tracker) ListByOwner(ctx context.Context, owner string, limit, offset int) ([]model.TransactionRecord, error) {
	if limit <= 0 {
		return nil, fault.Validation("limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, fault.Validation("offset must not be negative, got %d", offset)
	}
	records, err := t.store.ListTransactionsByOwner(ctx, owner, limit, offset)
	if err != nil {
		return nil, classify("list transactions", err)
	}
	return records, nil
}

// ListPending returns up to limit pending records, oldest first.
func (t *Tracker) ListPending(ctx context.Context, limit int) ([]model.TransactionRecord, error) {
	records, err := t.store.ListPendingTransactions(ctx, limit)
	if err != nil {
		return nil, classify("list pending transactions", err)
	}
	return records, nil
}

// classify maps storage contention onto TransientError and wraps the rest.
func classify(op string, err error) error {
	if errors.Is(err, store.ErrBusy) {
		return fault.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
