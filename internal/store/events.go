package store

import (
	"context"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
)

// InsertEvent appends an event and returns its assigned seq.
//
// seq comes from an AUTOINCREMENT key, so it never decreases or repeats even
// after rollbacks. e.Seq is ignored.
func (q *Queries) InsertEvent(ctx context.Context, e model.VaultEvent) (int64, error) {
	payload, err := marshalPayload(e.Payload)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	res, err := q.db.ExecContext(ctx, `
		INSERT INTO vault_events (id, owner, type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Owner, string(e.Type), payload, toNanos(e.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", classify(err))
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert event: last insert id: %w", err)
	}
	return seq, nil
}

// ListEvents returns up to limit events for owner with seq > afterSeq, in seq
// order. Returns an empty slice (not nil) when there are none.
func (q *Queries) ListEvents(ctx context.Context, owner string, afterSeq int64, limit int) ([]model.VaultEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT seq, id, owner, type, payload, created_at
		FROM vault_events
		WHERE owner = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, owner, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", classify(err))
	}
	defer rows.Close()

	events := []model.VaultEvent{}
	for rows.Next() {
		var (
			e         model.VaultEvent
			typ, data string
			created   int64
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.Owner, &typ, &data, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Type = model.EventType(typ)
		e.CreatedAt = fromNanos(created)
		if e.Payload, err = unmarshalPayload(data); err != nil {
			return nil, fmt.Errorf("event %d: %w", e.Seq, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastEventSeq returns the highest seq appended so far, or 0 for an empty log.
func (q *Queries) LastEventSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := q.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM vault_events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last event seq: %w", classify(err))
	}
	return seq, nil
}
