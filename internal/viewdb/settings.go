package viewdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Get returns the stored value for key. The boolean is false when the key
// has never been set.
func (d *DB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := d.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load setting %q: %w", key, err)
	}
	return value, true, nil
}

func (d *DB) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := d.db.ExecContext(ctx, `
INSERT INTO settings (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
  value=excluded.value,
  updated_at=excluded.updated_at
`, key, value, d.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save setting %q: %w", key, err)
	}
	return nil
}
