package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Error classes returned by row operations. Callers test with errors.Is; the
// driver error stays in the chain for logging.
var (
	// ErrNotFound means the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict means a uniqueness constraint rejected the write.
	ErrConflict = errors.New("store: unique constraint violated")

	// ErrConstraint means a CHECK, NOT NULL or foreign key constraint rejected the write.
	ErrConstraint = errors.New("store: constraint violated")

	// ErrBusy means SQLite could not obtain its lock within busy_timeout.
	ErrBusy = errors.New("store: database busy")

	// ErrStale means a guarded update matched no row because the row changed
	// since it was read (version or status mismatch).
	ErrStale = errors.New("store: stale write")
)

// classify maps driver errors onto the store error classes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %w", ErrBusy, err)
	case sqlite3.ErrConstraint:
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return fmt.Errorf("%w: %w", ErrConstraint, err)
	}
	return err
}

// expectOneRow turns a zero-row guarded update into ErrStale.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStale
	}
	return nil
}
