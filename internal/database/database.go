package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"social-ingest/internal/logging"
	"social-ingest/internal/metrics"
)

var log = logging.For("ledger")

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// FileName is the ledger file created inside DATABASE_DIR.
const FileName = "ledger.db"

// Database is the object ledger. It is safe for concurrent use.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (creating if needed) the ledger at dbPath, the full path to the
// database FILE. The parent directory must exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	log.Info("ledger path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		log.Warn("ledger permission diagnostics: %v", err)
	}

	// busy_timeout avoids "database is locked" under concurrent cleanup
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close ledger after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{db: db, dbPath: dbPath}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close ledger after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	log.Info("ledger ready at %s", dbPath)
	return d, nil
}

// Open opens the ledger file inside dir.
func Open(ctx context.Context, dir string) (*Database, error) {
	return New(ctx, filepath.Join(dir, FileName))
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS objects (
		key TEXT PRIMARY KEY,
		class TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL DEFAULT '',
		size INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL DEFAULT 'live',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_objects_state ON objects(state);
	CREATE INDEX IF NOT EXISTS idx_objects_class ON objects(class);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations adds columns introduced after the first schema.
func (d *Database) runMigrations(ctx context.Context) error {
	columns := []struct {
		name string
		ddl  string
	}{
		{"attempts", "ALTER TABLE objects ADD COLUMN attempts INTEGER NOT NULL DEFAULT 0"},
		{"last_error", "ALTER TABLE objects ADD COLUMN last_error TEXT NOT NULL DEFAULT ''"},
	}

	for _, c := range columns {
		var exists bool
		err := d.db.QueryRowContext(ctx, `
			SELECT COUNT(*) > 0
			FROM pragma_table_info('objects')
			WHERE name = ?
		`, c.name).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check for %s column: %w", c.name, err)
		}
		if exists {
			continue
		}

		log.Info("migrating ledger: adding %s column to objects table", c.name)
		if _, err := d.db.ExecContext(ctx, c.ddl); err != nil {
			return fmt.Errorf("failed to add %s column: %w", c.name, err)
		}
	}
	return nil
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// recordError counts failed ledger writes.
func recordError(operation string, err error) {
	if err != nil {
		metrics.LedgerErrors.WithLabelValues(operation).Inc()
	}
}

// diagnoseDatabasePermissions logs what it can find out about dbPath and
// its WAL companions so permission problems surface at startup.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat ledger directory: %w", err)
	}
	log.Debug("ledger directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("ledger directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		log.Debug("%s exists (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		log.Warn("%s is read-only (mode: %v), writes will fail", p, info.Mode())
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			log.Error("failed to fix permissions on %s: %v", p, chmodErr)
		} else {
			log.Info("fixed permissions on %s", p)
		}
	}

	return nil
}
