package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultledger/internal/model"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)

		var count int
		require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM vaults").Scan(&count))
		s.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("synchronous", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.Close())
}

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(q *Queries) error {
		return q.InsertVault(ctx, model.Vault{
			ID: "v1", Owner: ownerA, VaultAddress: vaultA, TokenMint: mint,
			CreatedAt: t0, UpdatedAt: t0,
		})
	})
	require.NoError(t, err)

	_, err = s.GetVault(ctx, ownerA)
	assert.NoError(t, err)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(q *Queries) error {
		require.NoError(t, q.InsertVault(ctx, model.Vault{
			ID: "v1", Owner: ownerA, VaultAddress: vaultA, TokenMint: mint,
			CreatedAt: t0, UpdatedAt: t0,
		}))
		_, err := q.InsertEvent(ctx, model.VaultEvent{
			ID: "e1", Owner: ownerA, Type: model.EventDeposit,
			Payload: model.Payload{"amount": int64(5)}, CreatedAt: t0,
		})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetVault(ctx, ownerA)
	assert.ErrorIs(t, err, ErrNotFound)

	seq, err := s.LastEventSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestClassify_Conflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestVault(t, s, "v1", ownerA, vaultA)

	err := s.InsertVault(ctx, model.Vault{
		ID: "v2", Owner: ownerA, VaultAddress: vaultB, TokenMint: mint,
		CreatedAt: t0, UpdatedAt: t0,
	})
	assert.ErrorIs(t, err, ErrConflict)

	err = s.InsertVault(ctx, model.Vault{
		ID: "v3", Owner: ownerB, VaultAddress: vaultA, TokenMint: mint,
		CreatedAt: t0, UpdatedAt: t0,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestClassify_CheckConstraint(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	v := createTestVault(t, s, "v1", ownerA, vaultA)

	v.TotalBalance = 10
	v.AvailableBalance = 5
	_, err := s.UpdateVaultBalances(ctx, v)
	assert.ErrorIs(t, err, ErrConstraint)

	v.TotalBalance = -1
	v.AvailableBalance = -1
	_, err = s.UpdateVaultBalances(ctx, v)
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestClassify_ForeignKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.InsertEvent(ctx, model.VaultEvent{
		ID: "e1", Owner: ownerA, Type: model.EventDeposit, CreatedAt: t0,
	})
	assert.ErrorIs(t, err, ErrConstraint)
}
