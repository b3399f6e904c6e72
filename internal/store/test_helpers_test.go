package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/vaultledger/internal/model"
)

const (
	ownerA = "4vJ9JU1bJJE96FWSJKvHsmmFADCg4gpZQff4P3bkLKi"
	ownerB = "8qbHbw2BbbTHBW1sbeqakYXVKRQM8Ne7pLK7m6CVfeR"
	vaultA = "GgBaCs3NCBuZN12kCJgAW63ydqohFkHEdfdEXBPzLHq"
	vaultB = "LbUiWL3xVV8hTFYBVdbTNrpDo41NKS6o3LHHuDzjfcY"
	mint   = "US517G5965aydkZ46HS38QLi7UQiSojurfbQfKCELFx"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestVault inserts an empty vault for owner.
func createTestVault(t *testing.T, s *Store, id, owner, address string) model.Vault {
	t.Helper()
	v := model.Vault{
		ID:           id,
		Owner:        owner,
		VaultAddress: address,
		TokenMint:    mint,
		CreatedAt:    t0,
		UpdatedAt:    t0,
	}
	require.NoError(t, s.InsertVault(context.Background(), v))
	return v
}
