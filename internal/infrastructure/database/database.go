package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	dirPerm  = 0750
	filePerm = 0600

	openPingTimeout = 5 * time.Second
)

// Config maps to the database section of config.yaml.
type Config struct {
	// Path to the SQLite file. The parent directory is created on open.
	Path string

	// WALMode enables write-ahead logging so reads do not block on the
	// single writer.
	WALMode bool

	// BusyTimeout in seconds before a locked database returns an error.
	BusyTimeout int
}

// DB is the service's SQLite handle. The embedded *sql.DB is handed
// directly to the unit repositories; this wrapper adds migrations and
// lifecycle management on top.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if necessary) the SQLite database at cfg.Path,
// applies the connection pragmas, and verifies connectivity with a ping.
// Foreign keys are always on; WAL and busy timeout come from cfg.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirPerm); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One writer is all SQLite gives us. Keeping a single pooled
	// connection also keeps in-memory test databases alive between
	// statements.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db := &DB{DB: sqlDB, path: cfg.Path}

	ctx, cancel := context.WithTimeout(context.Background(), openPingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // already on the error path
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// The file may not exist until the first write; tighten permissions
	// once it does.
	_ = os.Chmod(cfg.Path, filePerm) //nolint:errcheck

	return db, nil
}

// Close releases the underlying connection pool. Safe on a nil-initialized
// wrapper.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the filesystem path the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck runs a trivial query to confirm the connection is alive.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}
