package store

import (
	"context"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
)

// InsertAudit writes an audit entry. Duplicate ids are ignored so a
// redelivered entry is stored once.
func (q *Queries) InsertAudit(ctx context.Context, e model.AuditEntry) error {
	before, err := marshalPayload(e.Before)
	if err != nil {
		return fmt.Errorf("insert audit: before: %w", err)
	}
	after, err := marshalPayload(e.After)
	if err != nil {
		return fmt.Errorf("insert audit: after: %w", err)
	}
	metadata, err := marshalPayload(e.Metadata)
	if err != nil {
		return fmt.Errorf("insert audit: metadata: %w", err)
	}

	_, err = q.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, actor, action, target, before_state, after_state, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, e.ID, e.Actor, e.Action, e.Target, before, after, metadata, toNanos(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert audit: %w", classify(err))
	}
	return nil
}

// ListAudit returns audit entries for target (all targets when empty),
// oldest first.
func (q *Queries) ListAudit(ctx context.Context, target string, limit int) ([]model.AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, actor, action, target, before_state, after_state, metadata, created_at
		FROM audit_entries
		WHERE ? = '' OR target = ?
		ORDER BY created_at ASC, id COLLATE BINARY ASC
		LIMIT ?
	`, target, target, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", classify(err))
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			e                       model.AuditEntry
			before, after, metadata string
			created                 int64
		)
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Target, &before, &after, &metadata, &created); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.CreatedAt = fromNanos(created)
		if e.Before, err = unmarshalPayload(before); err != nil {
			return nil, fmt.Errorf("audit %s: %w", e.ID, err)
		}
		if e.After, err = unmarshalPayload(after); err != nil {
			return nil, fmt.Errorf("audit %s: %w", e.ID, err)
		}
		if e.Metadata, err = unmarshalPayload(metadata); err != nil {
			return nil, fmt.Errorf("audit %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit: %w", err)
	}
	return entries, nil
}
