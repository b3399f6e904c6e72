// Package authz is the allow-list of programs permitted to lock and unlock
// collateral on behalf of vault owners.
//
// Lookups are served from a TTL cache in front of the authorized_programs
// table. Add and Remove invalidate the entry they change, so a process sees
// its own changes immediately; other processes see them within the TTL.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
)

// DefaultCacheTTL is how long a lookup result is trusted.
const DefaultCacheTTL = 30 * time.Second

// Gate answers whether a program is currently authorized.
type Gate struct {
	store    *store.Store
	cache    *cache.Cache
	recorder *audit.Recorder
	clock    model.Clock
	logger   *slog.Logger

	// gen is bumped by every invalidation; a lookup only fills the cache if
	// no invalidation happened since it started.
	mu  sync.Mutex
	gen uint64
}

// Option configures a Gate.
type Option func(*Gate)

// WithCacheTTL sets the lookup cache TTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(g *Gate) {
		if ttl <= 0 {
			g.cache = nil
			return
		}
		g.cache = cache.New(ttl, 2*ttl)
	}
}

// WithRecorder sets the audit recorder for Add and Remove.
func WithRecorder(r *audit.Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// WithClock sets the timestamp source.
func WithClock(c model.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// New creates a Gate over s.
func New(s *store.Store, opts ...Option) *Gate {
	g := &Gate{
		store:  s,
		cache:  cache.New(DefaultCacheTTL, 2*DefaultCacheTTL),
		clock:  model.SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsActive reports whether program is on the allow-list and not removed.
func (g *Gate) IsActive(ctx context.Context, program string) (bool, error) {
	if g.cache != nil {
		if v, ok := g.cache.Get(program); ok {
			return v.(bool), nil
		}
	}

	gen := g.generation()
	active, err := g.lookup(ctx, program)
	if err != nil {
		return false, err
	}
	g.fill(program, active, gen)
	return active, nil
}

func (g *Gate) lookup(ctx context.Context, program string) (bool, error) {
	p, err := g.store.GetProgram(ctx, program)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if errors.Is(err, store.ErrBusy) {
			return false, fault.Transient("authorization lookup", err)
		}
		return false, fmt.Errorf("authorization lookup: %w", err)
	}
	return p.Status == model.ProgramActive, nil
}

func (g *Gate) generation() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen
}

// fill caches a lookup result unless an invalidation happened after the
// lookup started at gen.
func (g *Gate) fill(program string, active bool, gen uint64) {
	if g.cache == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gen == gen {
		g.cache.SetDefault(program, active)
	}
}

// Require returns UnauthorizedError unless program is active.
func (g *Gate) Require(ctx context.Context, program string) error {
	active, err := g.IsActive(ctx, program)
	if err != nil {
		return err
	}
	if !active {
		return fault.Unauthorized(program)
	}
	return nil
}

// Add authorizes program, reactivating it if it was removed. Adding an
// active program is a no-op.
func (g *Gate) Add(ctx context.Context, program, actor string) (model.AuthorizedProgram, error) {
	if err := model.ValidateAddress(program); err != nil {
		return model.AuthorizedProgram{}, fault.Validation("program: %v", err)
	}
	if actor == "" {
		return model.AuthorizedProgram{}, fault.Validation("actor is required")
	}

	before, err := g.store.GetProgram(ctx, program)
	exists := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return model.AuthorizedProgram{}, fmt.Errorf("add program: %w", err)
	}
	if exists && before.Status == model.ProgramActive {
		g.logger.Debug("program already authorized", "program", program)
		return before, nil
	}

	after := model.AuthorizedProgram{
		Program: program,
		Status:  model.ProgramActive,
		AddedBy: actor,
		AddedAt: g.clock.Now(),
	}
	if err := g.store.UpsertProgram(ctx, after); err != nil {
		return model.AuthorizedProgram{}, fmt.Errorf("add program: %w", err)
	}
	g.invalidate(program)

	g.logger.Info("program authorized", "program", program, "actor", actor)
	g.recorder.Record(ctx, model.AuditEntry{
		Actor:  actor,
		Action: audit.ActionProgramAdd,
		Target: program,
		Before: programSnapshot(before, exists),
		After:  programSnapshot(after, true),
	})
	return after, nil
}

// Remove soft-deletes program. Removing an unknown program is NotFoundError;
// removing a removed program is a no-op.
func (g *Gate) Remove(ctx context.Context, program, actor string) (model.AuthorizedProgram, error) {
	if actor == "" {
		return model.AuthorizedProgram{}, fault.Validation("actor is required")
	}

	before, err := g.store.GetProgram(ctx, program)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.AuthorizedProgram{}, fault.NotFound("program %s is not on the allow-list", program)
		}
		return model.AuthorizedProgram{}, fmt.Errorf("remove program: %w", err)
	}
	if before.Status == model.ProgramRemoved {
		return before, nil
	}

	now := g.clock.Now()
	after := before
	after.Status = model.ProgramRemoved
	after.RemovedBy = actor
	after.RemovedAt = &now
	if err := g.store.UpsertProgram(ctx, after); err != nil {
		return model.AuthorizedProgram{}, fmt.Errorf("remove program: %w", err)
	}
	g.invalidate(program)

	g.logger.Info("program removed", "program", program, "actor", actor)
	g.recorder.Record(ctx, model.AuditEntry{
		Actor:  actor,
		Action: audit.ActionProgramRemove,
		Target: program,
		Before: programSnapshot(before, true),
		After:  programSnapshot(after, true),
	})
	return after, nil
}

// List returns every allow-list row, active and removed.
func (g *Gate) List(ctx context.Context) ([]model.AuthorizedProgram, error) {
	programs, err := g.store.ListPrograms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

func (g *Gate) invalidate(program string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen++
	if g.cache != nil {
		g.cache.Delete(program)
	}
}

func programSnapshot(p model.AuthorizedProgram, exists bool) model.Payload {
	if !exists {
		return model.Payload{}
	}
	return model.Payload{"status": string(p.Status)}
}
