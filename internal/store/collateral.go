package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
)

// GetCollateralLock returns what program holds in owner's vault. A pair that
// never locked anything yields a zero-amount lock, not an error.
func (q *Queries) GetCollateralLock(ctx context.Context, owner, program string) (model.CollateralLock, error) {
	var updated int64
	lock := model.CollateralLock{Owner: owner, Program: program}
	err := q.db.QueryRowContext(ctx, `
		SELECT amount, updated_at FROM collateral_locks WHERE owner = ? AND program = ?
	`, owner, program).Scan(&lock.Amount, &updated)
	if err != nil {
		if err = classify(err); errors.Is(err, ErrNotFound) {
			return lock, nil
		}
		return model.CollateralLock{}, fmt.Errorf("get collateral lock: %w", err)
	}
	lock.UpdatedAt = fromNanos(updated)
	return lock, nil
}

// UpsertCollateralLock stores the amount program holds in owner's vault.
func (q *Queries) UpsertCollateralLock(ctx context.Context, lock model.CollateralLock) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO collateral_locks (owner, program, amount, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(owner, program) DO UPDATE SET amount = excluded.amount, updated_at = excluded.updated_at
	`, lock.Owner, lock.Program, lock.Amount, toNanos(lock.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upsert collateral lock: %w", classify(err))
	}
	return nil
}

// ListCollateralLocks returns the non-zero program locks on owner's vault.
func (q *Queries) ListCollateralLocks(ctx context.Context, owner string) ([]model.CollateralLock, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT owner, program, amount, updated_at
		FROM collateral_locks
		WHERE owner = ? AND amount > 0
		ORDER BY program COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query collateral locks: %w", classify(err))
	}
	defer rows.Close()

	locks := []model.CollateralLock{}
	for rows.Next() {
		var (
			l       model.CollateralLock
			updated int64
		)
		if err := rows.Scan(&l.Owner, &l.Program, &l.Amount, &updated); err != nil {
			return nil, fmt.Errorf("scan collateral lock: %w", err)
		}
		l.UpdatedAt = fromNanos(updated)
		locks = append(locks, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collateral locks: %w", err)
	}
	return locks, nil
}
