package authz

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultledger/internal/audit"
	"github.com/roach88/vaultledger/internal/fault"
	"github.com/roach88/vaultledger/internal/model"
	"github.com/roach88/vaultledger/internal/store"
	"github.com/roach88/vaultledger/internal/testutil"
)

func newGate(t *testing.T, opts ...Option) (*store.Store, *Gate) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	rec := audit.NewRecorder(audit.NewStoreSink(s), testutil.NewSequenceIDGenerator(), testutil.NewDeterministicClock())
	opts = append([]Option{WithRecorder(rec), WithClock(testutil.NewDeterministicClock())}, opts...)
	return s, New(s, opts...)
}

func TestRequire_UnknownProgram(t *testing.T) {
	_, g := newGate(t)

	err := g.Require(context.Background(), testutil.Program)
	assert.True(t, fault.IsUnauthorized(err), "got %v", err)
}

func TestAddRemove_Lifecycle(t *testing.T) {
	s, g := newGate(t)
	ctx := context.Background()

	added, err := g.Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)
	assert.Equal(t, model.ProgramActive, added.Status)
	assert.NoError(t, g.Require(ctx, testutil.Program))

	removed, err := g.Remove(ctx, testutil.Program, "ops")
	require.NoError(t, err)
	assert.Equal(t, model.ProgramRemoved, removed.Status)
	assert.Equal(t, "ops", removed.RemovedBy)
	assert.True(t, fault.IsUnauthorized(g.Require(ctx, testutil.Program)))

	// Soft removal keeps the row.
	programs, err := g.List(ctx)
	require.NoError(t, err)
	require.Len(t, programs, 1)
	assert.Equal(t, model.ProgramRemoved, programs[0].Status)

	readded, err := g.Add(ctx, testutil.Program, "admin2")
	require.NoError(t, err)
	assert.Equal(t, model.ProgramActive, readded.Status)
	assert.Nil(t, readded.RemovedAt)
	assert.NoError(t, g.Require(ctx, testutil.Program))

	entries, err := s.ListAudit(ctx, testutil.Program, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, audit.ActionProgramAdd, entries[0].Action)
	assert.Equal(t, audit.ActionProgramRemove, entries[1].Action)
	assert.Equal(t, "removed", entries[2].Before["status"])
}

func TestAdd_IdempotentWhenActive(t *testing.T) {
	s, g := newGate(t)
	ctx := context.Background()

	_, err := g.Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)
	_, err = g.Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)

	entries, err := s.ListAudit(ctx, testutil.Program, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAdd_Validation(t *testing.T) {
	_, g := newGate(t)
	ctx := context.Background()

	_, err := g.Add(ctx, "not an address", "admin")
	assert.True(t, fault.IsValidation(err))

	_, err = g.Add(ctx, testutil.Program, "")
	assert.True(t, fault.IsValidation(err))
}

func TestRemove_Unknown(t *testing.T) {
	_, g := newGate(t)

	_, err := g.Remove(context.Background(), testutil.Program, "ops")
	assert.True(t, fault.IsNotFound(err))
}

func TestIsActive_CachesNegativeLookups(t *testing.T) {
	s, g := newGate(t, WithCacheTTL(time.Hour))
	ctx := context.Background()

	active, err := g.IsActive(ctx, testutil.Program)
	require.NoError(t, err)
	assert.False(t, active)

	// A write that bypasses the gate is not seen until the entry expires.
	require.NoError(t, s.UpsertProgram(ctx, model.AuthorizedProgram{
		Program: testutil.Program, Status: model.ProgramActive, AddedBy: "direct", AddedAt: testutil.Epoch,
	}))
	active, err = g.IsActive(ctx, testutil.Program)
	require.NoError(t, err)
	assert.False(t, active)

	// Changes through the gate invalidate the entry.
	_, err = g.Remove(ctx, testutil.Program, "ops")
	require.NoError(t, err)
	_, err = g.Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)
	active, err = g.IsActive(ctx, testutil.Program)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestIsActive_NoCache(t *testing.T) {
	s, g := newGate(t, WithCacheTTL(0))
	ctx := context.Background()

	active, err := g.IsActive(ctx, testutil.Program)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, s.UpsertProgram(ctx, model.AuthorizedProgram{
		Program: testutil.Program, Status: model.ProgramActive, AddedBy: "direct", AddedAt: testutil.Epoch,
	}))
	active, err = g.IsActive(ctx, testutil.Program)
	require.NoError(t, err)
	assert.True(t, active)
}

func TestIsActive_RemoveDuringLookupIsNotCached(t *testing.T) {
	_, g := newGate(t, WithCacheTTL(time.Hour))
	ctx := context.Background()

	_, err := g.Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)

	// A lookup reads the row as active, then Remove commits before the
	// lookup stores its result.
	gen := g.generation()
	active, err := g.lookup(ctx, testutil.Program)
	require.NoError(t, err)
	require.True(t, active)

	_, err = g.Remove(ctx, testutil.Program, "ops")
	require.NoError(t, err)
	g.fill(testutil.Program, active, gen)

	assert.True(t, fault.IsUnauthorized(g.Require(ctx, testutil.Program)))
}

func TestAddRemove_LogThroughInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	_, g := newGate(t, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	ctx := context.Background()

	_, err := g.Add(ctx, testutil.Program, "admin")
	require.NoError(t, err)
	_, err = g.Remove(ctx, testutil.Program, "ops")
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "program authorized")
	assert.Contains(t, buf.String(), "program removed")
}
