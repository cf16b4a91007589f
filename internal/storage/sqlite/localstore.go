package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mmynk/receiptsplit/internal/identity"
)

var _ identity.LocalStore = (*LocalStore)(nil)

const localSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// LocalStore is a device-scoped key/value store backed by a SQLite file.
type LocalStore struct {
	db *sql.DB
}

// OpenLocalStore opens (or creates) the device store at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(localSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// Get returns the value stored under key.
func (l *LocalStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := l.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (l *LocalStore) Set(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (l *LocalStore) Close() error {
	return l.db.Close()
}
