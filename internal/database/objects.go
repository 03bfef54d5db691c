package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"social-ingest/internal/metrics"
)

// ErrNotFound is returned by Get for keys the ledger has never seen.
var ErrNotFound = errors.New("object not in ledger")

const objectColumns = `key, class, source_url, content_type, size, state, attempts, last_error, created_at, updated_at`

// RecordStored upserts obj as live. A key that was previously deleted and
// is written again becomes live with its attempt counter reset.
func (d *Database) RecordStored(ctx context.Context, obj Object) (err error) {
	defer func() { recordError("record_stored", err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO objects (key, class, source_url, content_type, size, state, attempts, last_error)
	VALUES (?, ?, ?, ?, ?, 'live', 0, '')
	ON CONFLICT(key) DO UPDATE SET
		class = excluded.class,
		source_url = excluded.source_url,
		content_type = excluded.content_type,
		size = excluded.size,
		state = 'live',
		attempts = 0,
		last_error = '',
		updated_at = strftime('%s', 'now')
	`, obj.Key, obj.Class, obj.SourceURL, obj.ContentType, obj.Size)
	if err != nil {
		return fmt.Errorf("failed to record %s: %w", obj.Key, err)
	}
	return nil
}

// RecordDeleted marks key deleted. Keys written before the ledger existed
// get a tombstone row.
func (d *Database) RecordDeleted(ctx context.Context, key string) (err error) {
	defer func() { recordError("record_deleted", err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO objects (key, class, state) VALUES (?, 'unknown', 'deleted')
	ON CONFLICT(key) DO UPDATE SET
		state = 'deleted',
		last_error = '',
		updated_at = strftime('%s', 'now')
	`, key)
	if err != nil {
		return fmt.Errorf("failed to record deletion of %s: %w", key, err)
	}
	return nil
}

// MarkPendingDelete records a failed delete of key so the sweep retries it.
func (d *Database) MarkPendingDelete(ctx context.Context, key, reason string) (err error) {
	defer func() { recordError("mark_pending", err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(ctx, `
	INSERT INTO objects (key, class, state, attempts, last_error) VALUES (?, 'unknown', 'pending_delete', 1, ?)
	ON CONFLICT(key) DO UPDATE SET
		state = 'pending_delete',
		attempts = objects.attempts + 1,
		last_error = excluded.last_error,
		updated_at = strftime('%s', 'now')
	`, key, reason)
	if err != nil {
		return fmt.Errorf("failed to mark %s pending delete: %w", key, err)
	}
	return nil
}

// Get returns the ledger row for key.
func (d *Database) Get(ctx context.Context, key string) (*Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE key = ?`, key)
	obj, err := scanObject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// PendingDeletes returns up to limit rows awaiting deletion, oldest first.
func (d *Database) PendingDeletes(ctx context.Context, limit int) ([]Object, error) {
	return d.ListObjects(ctx, StatePendingDelete, limit)
}

// ListObjects returns rows in state (all states when empty), least recently
// updated first. limit <= 0 means no limit.
func (d *Database) ListObjects(ctx context.Context, state ObjectState, limit int) ([]Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}

	query := `SELECT ` + objectColumns + ` FROM objects`
	args := []any{}
	if state != "" {
		query += ` WHERE state = ?`
		args = append(args, state)
	}
	query += ` ORDER BY updated_at, key LIMIT ?`
	args = append(args, limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("failed to close rows: %v", closeErr)
		}
	}()

	var out []Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *obj)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObject(s rowScanner) (*Object, error) {
	var obj Object
	var created, updated int64
	err := s.Scan(&obj.Key, &obj.Class, &obj.SourceURL, &obj.ContentType, &obj.Size,
		&obj.State, &obj.Attempts, &obj.LastError, &created, &updated)
	if err != nil {
		return nil, err
	}
	obj.CreatedAt = time.Unix(created, 0)
	obj.UpdatedAt = time.Unix(updated, 0)
	return &obj, nil
}

// Counts returns the number of rows per state and the total size of live
// objects.
func (d *Database) Counts(ctx context.Context) (metrics.Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var s metrics.Stats
	err := d.db.QueryRowContext(ctx, `
	SELECT
		COALESCE(SUM(CASE WHEN state = 'live' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN state = 'pending_delete' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN state = 'deleted' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN state = 'live' THEN size ELSE 0 END), 0)
	FROM objects
	`).Scan(&s.LiveObjects, &s.PendingDeletes, &s.DeletedObjects, &s.LiveBytes)
	if err != nil {
		return metrics.Stats{}, fmt.Errorf("failed to count objects: %w", err)
	}
	return s, nil
}

// GetStats implements metrics.StatsProvider. Errors are logged and yield
// zero counts.
func (d *Database) GetStats() metrics.Stats {
	s, err := d.Counts(context.Background())
	if err != nil {
		recordError("stats", err)
		log.Warn("%v", err)
	}
	return s
}
