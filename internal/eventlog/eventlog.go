// Package eventlog is the append-only per-owner history of vault mutations.
//
// Events are appended inside the caller's atomic unit, so an event exists iff
// the balance change it describes committed. The log is the arbiter when the
// stored vault row and the history disagree: Verify reports the disagreement,
// it never rewrites either side.
package eventlog

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// DefaultPageSize is the number of events fetched per query by ListByOwner.
const DefaultPageSize = 256

// Log appends and reads vault events.
type Log struct {
	store    *store.Store
	ids      model.IDGenerator
	clock    model.Clock
	pageSize int
}

// Option configures a Log.
type Option func(*Log)

// WithIDGenerator sets the event id source. Defaults to UUIDv7.
func WithIDGenerator(ids model.IDGenerator) Option {
	return func(l *Log) { l.ids = ids }
}

// WithClock sets the created_at source. Defaults to the system clock.
func WithClock(c model.Clock) Option {
	return func(l *Log) { l.clock = c }
}

// WithPageSize sets how many events ListByOwner fetches per query.
func WithPageSize(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.pageSize = n
		}
	}
}

// New creates a Log over s.
func New(s *store.Store, opts ...Option) *Log {
	l := &Log{
		store:    s,
		ids:      model.UUIDv7Generator{},
		clock:    model.SystemClock{},
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append writes one event through q, the caller's open transaction.
//
// The returned event carries its assigned seq. On error the caller must let
// the enclosing unit roll back.
func (l *Log) Append(ctx context.Context, q *store.Queries, owner string, typ model.EventType, payload model.Payload) (model.VaultEvent, error) {
	if !typ.Valid() {
		return model.VaultEvent{}, fault.Validation("unknown event type %q", typ)
	}
	if payload == nil {
		payload = model.Payload{}
	}

	e := model.VaultEvent{
		ID:        l.ids.Generate(),
		Owner:     owner,
		Type:      typ,
		Payload:   payload,
		CreatedAt: l.clock.Now(),
	}

	seq, err := q.InsertEvent(ctx, e)
	if err != nil {
		return model.VaultEvent{}, fmt.Errorf("append %s event: %w", typ, err)
	}
	e.Seq = seq
	return e, nil
}

// ListByOwner yields owner's events with seq > since in append order.
//
// Events are fetched one page at a time and no database resources are held
// while the consumer runs, so iteration may be abandoned at any point and
// resumed later by passing the last seen seq as since. An error is yielded
// once and ends the sequence.
func (l *Log) ListByOwner(ctx context.Context, owner string, since int64) iter.Seq2[model.VaultEvent, error] {
	return func(yield func(model.VaultEvent, error) bool) {
		cursor := since
		for {
			page, err := l.store.ListEvents(ctx, owner, cursor, l.pageSize)
			if err != nil {
				yield(model.VaultEvent{}, fmt.Errorf("list events for %s: %w", owner, err))
				return
			}
			for _, e := range page {
				if !yield(e, nil) {
					return
				}
				cursor = e.Seq
			}
			if len(page) < l.pageSize {
				return
			}
		}
	}
}

// Collect drains ListByOwner into a slice.
func (l *Log) Collect(ctx context.Context, owner string, since int64) ([]model.VaultEvent, error) {
	events := []model.VaultEvent{}
	for e, err := range l.ListByOwner(ctx, owner, since) {
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}
