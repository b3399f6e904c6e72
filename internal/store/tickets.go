package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/vaultledger/internal/model"
)

const ticketColumns = `id, owner, amount, status, signature, created_at, updated_at`

// InsertTicket creates a withdrawal ticket.
func (q *Queries) InsertTicket(ctx context.Context, t model.WithdrawalTicket) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO withdrawal_tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.Owner, t.Amount, string(t.Status), nullableString(t.Signature),
		toNanos(t.CreatedAt), toNanos(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", classify(err))
	}
	return nil
}

// GetTicket returns a ticket by id, or ErrNotFound.
func (q *Queries) GetTicket(ctx context.Context, id string) (model.WithdrawalTicket, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM withdrawal_tickets WHERE id = ?`, id)
	t, err := scanTicket(row)
	if err != nil {
		return model.WithdrawalTicket{}, fmt.Errorf("get ticket: %w", classify(err))
	}
	return t, nil
}

// GetTicketBySignature returns the ticket a withdrawal signature was
// submitted under, or ErrNotFound.
func (q *Queries) GetTicketBySignature(ctx context.Context, signature string) (model.WithdrawalTicket, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM withdrawal_tickets WHERE signature = ?`, signature)
	t, err := scanTicket(row)
	if err != nil {
		return model.WithdrawalTicket{}, fmt.Errorf("get ticket by signature: %w", classify(err))
	}
	return t, nil
}

// UpdateTicket writes t's status and signature, provided the stored status
// is still from. Otherwise it returns ErrStale.
func (q *Queries) UpdateTicket(ctx context.Context, t model.WithdrawalTicket, from model.TicketStatus) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE withdrawal_tickets
		SET status = ?, signature = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, string(t.Status), nullableString(t.Signature), toNanos(t.UpdatedAt), t.ID, string(from))
	if err != nil {
		return fmt.Errorf("update ticket: %w", classify(err))
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

// ListTicketsByStatus returns tickets in status created before cutoff,
// oldest first.
func (q *Queries) ListTicketsByStatus(ctx context.Context, status model.TicketStatus, cutoff time.Time, limit int) ([]model.WithdrawalTicket, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM withdrawal_tickets
		WHERE status = ? AND created_at < ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
		LIMIT ?
	`, string(status), toNanos(cutoff), limit)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", classify(err))
	}
	return collectTickets(rows)
}

// ListTicketsByOwner returns an owner's tickets, oldest first.
func (q *Queries) ListTicketsByOwner(ctx context.Context, owner string) ([]model.WithdrawalTicket, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+ticketColumns+`
		FROM withdrawal_tickets
		WHERE owner = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query tickets: %w", classify(err))
	}
	return collectTickets(rows)
}

func collectTickets(rows *sql.Rows) ([]model.WithdrawalTicket, error) {
	defer rows.Close()

	tickets := []model.WithdrawalTicket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}

func scanTicket(s scanner) (model.WithdrawalTicket, error) {
	var (
		t                model.WithdrawalTicket
		status           string
		signature        sql.NullString
		created, updated int64
	)
	if err := s.Scan(&t.ID, &t.Owner, &t.Amount, &status, &signature, &created, &updated); err != nil {
		return model.WithdrawalTicket{}, err
	}
	t.Status = model.TicketStatus(status)
	t.Signature = signature.String
	t.CreatedAt = fromNanos(created)
	t.UpdatedAt = fromNanos(updated)
	return t, nil
}
