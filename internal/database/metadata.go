package database

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const lastSweepKey = "last_sweep"

// GetMetadata retrieves a metadata value by key. Returns sql.ErrNoRows if
// the key doesn't exist.
func (d *Database) GetMetadata(ctx context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata sets a metadata key-value pair.
func (d *Database) SetMetadata(ctx context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// LastSweep returns when the pending-delete sweep last completed, or the
// zero time if it never ran.
func (d *Database) LastSweep(ctx context.Context) (time.Time, error) {
	value, err := d.GetMetadata(ctx, lastSweepKey)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && value == "") {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// SetLastSweep stores the completion time of a sweep.
func (d *Database) SetLastSweep(ctx context.Context, t time.Time) error {
	return d.SetMetadata(ctx, lastSweepKey, t.UTC().Format(time.RFC3339))
}
