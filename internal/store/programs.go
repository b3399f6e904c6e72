package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/vaultledger/internal/model"
)

// UpsertProgram writes an allow-list row, reactivating a removed program.
func (q *Queries) UpsertProgram(ctx context.Context, p model.AuthorizedProgram) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO authorized_programs (program, status, added_by, added_at, removed_by, removed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(program) DO UPDATE SET
			status = excluded.status,
			added_by = excluded.added_by,
			added_at = excluded.added_at,
			removed_by = excluded.removed_by,
			removed_at = excluded.removed_at
	`,
		p.Program, string(p.Status), p.AddedBy, toNanos(p.AddedAt),
		p.RemovedBy, nullableNanos(p.RemovedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert program: %w", classify(err))
	}
	return nil
}

// GetProgram returns the allow-list row for program, or ErrNotFound.
func (q *Queries) GetProgram(ctx context.Context, program string) (model.AuthorizedProgram, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT program, status, added_by, added_at, removed_by, removed_at
		FROM authorized_programs
		WHERE program = ?
	`, program)
	p, err := scanProgram(row)
	if err != nil {
		return model.AuthorizedProgram{}, fmt.Errorf("get program: %w", classify(err))
	}
	return p, nil
}

// ListPrograms returns every allow-list row, active and removed.
func (q *Queries) ListPrograms(ctx context.Context) ([]model.AuthorizedProgram, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT program, status, added_by, added_at, removed_by, removed_at
		FROM authorized_programs
		ORDER BY program COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query programs: %w", classify(err))
	}
	defer rows.Close()

	programs := []model.AuthorizedProgram{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate programs: %w", err)
	}
	return programs, nil
}

func scanProgram(s scanner) (model.AuthorizedProgram, error) {
	var (
		p       model.AuthorizedProgram
		status  string
		added   int64
		removed sql.NullInt64
	)
	if err := s.Scan(&p.Program, &status, &p.AddedBy, &added, &p.RemovedBy, &removed); err != nil {
		return model.AuthorizedProgram{}, err
	}
	p.Status = model.ProgramStatus(status)
	p.AddedAt = fromNanos(added)
	if removed.Valid {
		t := fromNanos(removed.Int64)
		p.RemovedAt = &t
	}
	return p, nil
}
