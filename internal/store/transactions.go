package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
)

const txColumns = `signature, owner, type, status, amount, slot, block_time, fee,
	error_message, created_at, updated_at`

// InsertTransaction creates a transaction record. A duplicate signature
// returns ErrConflict.
func (q *Queries) InsertTransaction(ctx context.Context, r model.TransactionRecord) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO transaction_logs (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.Signature, nullableString(r.Owner), string(r.Type), string(r.Status),
		r.Amount, r.Slot, r.BlockTime, r.Fee, r.ErrorMessage,
		toNanos(r.CreatedAt), toNanos(r.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", classify(err))
	}
	return nil
}

// GetTransaction returns the record for signature, or ErrNotFound.
func (q *Queries) GetTransaction(ctx context.Context, signature string) (model.TransactionRecord, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transaction_logs WHERE signature = ?`, signature)
	r, err := scanTransaction(row)
	if err != nil {
		return model.TransactionRecord{}, fmt.Errorf("get transaction: %w", classify(err))
	}
	return r, nil
}

// CompleteTransaction moves a pending record to r.Status and stores the
// settlement details. A record that is no longer pending yields ErrStale.
func (q *Queries) CompleteTransaction(ctx context.Context, r model.TransactionRecord) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transaction_logs
		SET status = ?, slot = ?, block_time = ?, fee = ?, error_message = ?, updated_at = ?
		WHERE signature = ? AND status = 'pending'
	`,
		string(r.Status), r.Slot, r.BlockTime, r.Fee, r.ErrorMessage, toNanos(r.UpdatedAt),
		r.Signature,
	)
	if err != nil {
		return fmt.Errorf("complete transaction: %w", classify(err))
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("complete transaction: %w", err)
	}
	return nil
}

// ListTransactionsByOwner returns an owner's records, newest first.
func (q *Queries) ListTransactionsByOwner(ctx context.Context, owner string, limit, offset int) ([]model.TransactionRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+txColumns+`
		FROM transaction_logs
		WHERE owner = ?
		ORDER BY created_at DESC, signature COLLATE BINARY ASC
		LIMIT ? OFFSET ?
	`, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", classify(err))
	}
	return collectTransactions(rows)
}

// ListPendingTransactions returns the oldest pending records first.
func (q *Queries) ListPendingTransactions(ctx context.Context, limit int) ([]model.TransactionRecord, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+txColumns+`
		FROM transaction_logs
		WHERE status = 'pending'
		ORDER BY created_at ASC, signature COLLATE BINARY ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending transactions: %w", classify(err))
	}
	return collectTransactions(rows)
}

func collectTransactions(rows *sql.Rows) ([]model.TransactionRecord, error) {
	defer rows.Close()

	records := []model.TransactionRecord{}
	for rows.Next() {
		r, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

func scanTransaction(s scanner) (model.TransactionRecord, error) {
	var (
		r                model.TransactionRecord
		owner            sql.NullString
		typ, status      string
		created, updated int64
	)
	err := s.Scan(
		&r.Signature, &owner, &typ, &status, &r.Amount,
		&r.Slot, &r.BlockTime, &r.Fee, &r.ErrorMessage,
		&created, &updated,
	)
	if err != nil {
		return model.TransactionRecord{}, err
	}
	r.Owner = owner.String
	r.Type = model.TxType(typ)
	r.Status = model.TxStatus(status)
	r.CreatedAt = fromNanos(created)
	r.UpdatedAt = fromNanos(updated)
	return r, nil
}
