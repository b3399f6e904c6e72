// Package audit delivers records of privileged ledger mutations.
//
// Delivery is fire-and-forget from the caller's point of view: the mutation
// has already committed when Record runs, so a delivery failure is reported
// through the error log with alert=audit_delivery and never returned.
package audit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// Audited actions.
const (
	ActionLockCollateral   = "collateral.lock"
	ActionUnlockCollateral = "collateral.unlock"
	ActionAdjust           = "vault.adjust"
	ActionCancelWithdrawal = "withdrawal.cancel"
	ActionProgramAdd       = "program.add"
	ActionProgramRemove    = "program.remove"
)

// Sink persists audit entries.
type Sink interface {
	Write(ctx context.Context, e model.AuditEntry) error
}

// StoreSink writes entries to the audit_entries table.
type StoreSink struct {
	store *store.Store
}

// NewStoreSink creates a sink over s.
func NewStoreSink(s *store.Store) *StoreSink {
	return &StoreSink{store: s}
}

// Write implements Sink.
func (s *StoreSink) Write(ctx context.Context, e model.AuditEntry) error {
	return s.store.InsertAudit(ctx, e)
}

// MultiSink writes every entry to all of its sinks.
type MultiSink []Sink

// Write implements Sink. Every sink is attempted; failures are joined.
func (m MultiSink) Write(ctx context.Context, e model.AuditEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder stamps and delivers audit entries.
type Recorder struct {
	sink   Sink
	ids    model.IDGenerator
	clock  model.Clock
	logger *slog.Logger
}

// NewRecorder creates a Recorder. Nil ids or clock use the defaults.
func NewRecorder(sink Sink, ids model.IDGenerator, clock model.Clock) *Recorder {
	if ids == nil {
		ids = model.UUIDv7Generator{}
	}
	if clock == nil {
		clock = model.SystemClock{}
	}
	return &Recorder{sink: sink, ids: ids, clock: clock}
}

// WithLogger sets where delivery failures are logged and returns r.
// Without it they go to slog.Default().
func (r *Recorder) WithLogger(l *slog.Logger) *Recorder {
	r.logger = l
	return r
}

// Record delivers e, assigning ID and CreatedAt when unset.
// A nil Recorder or a Recorder without a sink drops the entry.
func (r *Recorder) Record(ctx context.Context, e model.AuditEntry) {
	if r == nil || r.sink == nil {
		return
	}
	if e.ID == "" {
		e.ID = r.ids.Generate()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.clock.Now()
	}

	if err := r.sink.Write(context.WithoutCancel(ctx), e); err != nil {
		logger := r.logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("audit delivery failed",
			"alert", "audit_delivery",
			"audit_id", e.ID,
			"actor", e.Actor,
			"action", e.Action,
			"target", e.Target,
			"error", err,
		)
	}
}
