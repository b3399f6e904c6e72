package store

import (
	"context"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
)

const vaultColumns = `id, owner, vault_address, token_mint, total_balance, locked_balance,
	available_balance, total_deposited, total_withdrawn, version, created_at, updated_at`

// InsertVault creates a vault row. A duplicate owner or vault address returns
// ErrConflict.
func (q *Queries) InsertVault(ctx context.Context, v model.Vault) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO vaults (`+vaultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		v.ID, v.Owner, v.VaultAddress, v.TokenMint,
		v.TotalBalance, v.LockedBalance, v.AvailableBalance,
		v.TotalDeposited, v.TotalWithdrawn, v.Version,
		toNanos(v.CreatedAt), toNanos(v.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert vault: %w", classify(err))
	}
	return nil
}

// GetVault returns the vault for owner, or ErrNotFound.
func (q *Queries) GetVault(ctx context.Context, owner string) (model.Vault, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE owner = ?`, owner)
	v, err := scanVault(row)
	if err != nil {
		return model.Vault{}, fmt.Errorf("get vault: %w", classify(err))
	}
	return v, nil
}

// GetVaultByAddress returns the vault bound to an on-chain address, or ErrNotFound.
func (q *Queries) GetVaultByAddress(ctx context.Context, vaultAddress string) (model.Vault, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE vault_address = ?`, vaultAddress)
	v, err := scanVault(row)
	if err != nil {
		return model.Vault{}, fmt.Errorf("get vault by address: %w", classify(err))
	}
	return v, nil
}

// UpdateVaultBalances writes the balance fields of v guarded by v.Version.
//
// The stored version must equal v.Version; it is incremented on success and
// the returned vault carries the new version. A concurrent writer that got
// there first produces ErrStale. CHECK constraint failures (negative balance,
// total != locked + available) produce ErrConstraint.
func (q *Queries) UpdateVaultBalances(ctx context.Context, v model.Vault) (model.Vault, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE vaults
		SET total_balance = ?, locked_balance = ?, available_balance = ?,
		    total_deposited = ?, total_withdrawn = ?,
		    version = version + 1, updated_at = ?
		WHERE owner = ? AND version = ?
	`,
		v.TotalBalance, v.LockedBalance, v.AvailableBalance,
		v.TotalDeposited, v.TotalWithdrawn,
		toNanos(v.UpdatedAt),
		v.Owner, v.Version,
	)
	if err != nil {
		return model.Vault{}, fmt.Errorf("update vault: %w", classify(err))
	}
	if err := expectOneRow(res); err != nil {
		return model.Vault{}, fmt.Errorf("update vault: %w", err)
	}
	v.Version++
	return v, nil
}

// ListVaults returns every vault ordered by creation.
// Returns an empty slice (not nil) when there are none.
func (q *Queries) ListVaults(ctx context.Context) ([]model.Vault, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+vaultColumns+`
		FROM vaults
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query vaults: %w", classify(err))
	}
	defer rows.Close()

	vaults := []model.Vault{}
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vault: %w", err)
		}
		vaults = append(vaults, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vaults: %w", err)
	}
	return vaults, nil
}

// TotalValueLocked returns the sum of total_balance across all vaults.
func (q *Queries) TotalValueLocked(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_balance), 0) FROM vaults`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total value locked: %w", classify(err))
	}
	return total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVault(s scanner) (model.Vault, error) {
	var (
		v                model.Vault
		created, updated int64
	)
	err := s.Scan(
		&v.ID, &v.Owner, &v.VaultAddress, &v.TokenMint,
		&v.TotalBalance, &v.LockedBalance, &v.AvailableBalance,
		&v.TotalDeposited, &v.TotalWithdrawn, &v.Version,
		&created, &updated,
	)
	if err != nil {
		return model.Vault{}, err
	}
	v.CreatedAt = fromNanos(created)
	v.UpdatedAt = fromNanos(updated)
	return v, nil
}
