package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/vaultledger/internal/model"
)

// toNanos converts a timestamp to its stored form.
func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

// fromNanos converts a stored timestamp back to UTC time.
func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

// marshalPayload converts a payload to canonical JSON TEXT for storage.
func marshalPayload(p model.Payload) (string, error) {
	if p == nil {
		return "{}", nil
	}
	data, err := model.MarshalCanonical(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses stored canonical JSON TEXT.
func unmarshalPayload(data string) (model.Payload, error) {
	if data == "" || data == "{}" {
		return model.Payload{}, nil
	}
	return model.DecodePayload([]byte(data))
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
