package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the key/value contract shared by [SQLiteStore] and [RedisStore].
//
// Get returns [shared.ErrKeyNotFound] when key has no value.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// NextSequence advances the counter row of table's sequence table and returns the new value.
//
// Sequence numbers order records for listing; they are never shown to the user.
func NextSequence(ctx context.Context, db *sql.DB, table string) (int, error) {
	q := fmt.Sprintf("UPDATE %s_sequence SET value = value + 1 WHERE id = 1 RETURNING value", table)

	var sequence int
	if err := db.QueryRowContext(ctx, q).Scan(&sequence); err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", table, err)
	}
	return sequence, nil
}

// nullable maps the zero string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
