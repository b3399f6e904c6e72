package store

import (
	"context"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
)

// InsertDiscrepancy records a balance mismatch observed by the poller.
func (q *Queries) InsertDiscrepancy(ctx context.Context, d model.Discrepancy) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO reconciliation_logs (id, owner, onchain_balance, offchain_balance, discrepancy, observed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.Owner, d.OnchainBalance, d.OffchainBalance, d.Discrepancy, toNanos(d.ObservedAt))
	if err != nil {
		return fmt.Errorf("insert discrepancy: %w", classify(err))
	}
	return nil
}

// ListDiscrepancies returns recorded mismatches for owner (all owners when
// empty), newest first.
func (q *Queries) ListDiscrepancies(ctx context.Context, owner string, limit int) ([]model.Discrepancy, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner, onchain_balance, offchain_balance, discrepancy, observed_at
		FROM reconciliation_logs
		WHERE ? = '' OR owner = ?
		ORDER BY observed_at DESC, id COLLATE BINARY ASC
		LIMIT ?
	`, owner, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("query discrepancies: %w", classify(err))
	}
	defer rows.Close()

	out := []model.Discrepancy{}
	for rows.Next() {
		var (
			d        model.Discrepancy
			observed int64
		)
		if err := rows.Scan(&d.ID, &d.Owner, &d.OnchainBalance, &d.OffchainBalance, &d.Discrepancy, &observed); err != nil {
			return nil, fmt.Errorf("scan discrepancy: %w", err)
		}
		d.ObservedAt = fromNanos(observed)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discrepancies: %w", err)
	}
	return out, nil
}
