package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

// MigrationsFS holds the embedded .sql migration files. The migrations
// package registers its embed.FS here from an init func so the schema
// travels inside the binary.
var MigrationsFS embed.FS

// MigrationsDir is the directory inside MigrationsFS holding the .sql
// files ("." when they sit at the root).
var MigrationsDir = "migrations"

// migration pairs the up and down SQL for one schema version. Filenames
// follow YYYYMMDD_HHMMSS_description.{up,down}.sql; the version is the
// timestamp prefix.
type migration struct {
	version string
	name    string
	up      string
	down    string
}

// Migrate brings the schema up to date, applying any pending migrations
// oldest first. Each migration runs in its own transaction: a failure
// rolls back that migration only, leaving earlier ones committed, and a
// rerun resumes from the failed one.
func (db *DB) Migrate(ctx context.Context) error {
	if err := db.ensureVersionTable(ctx); err != nil {
		return err
	}

	migs, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migs {
		if _, done := applied[m.version]; done {
			continue
		}
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// MigrateDown rolls back the most recently applied migration. Development
// and test tooling only.
func (db *DB) MigrateDown(ctx context.Context) error {
	var latest string
	err := db.QueryRowContext(ctx,
		"SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1",
	).Scan(&latest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding latest migration: %w", err)
	}

	migs, err := loadMigrations()
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	var target *migration
	for i := range migs {
		if migs[i].version == latest {
			target = &migs[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("migration %s not found in embedded files", latest)
	}
	if target.down == "" {
		return fmt.Errorf("migration %s has no down file", latest)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting rollback transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, target.down); err != nil {
		return fmt.Errorf("executing down SQL for %s: %w", latest, err)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM schema_migrations WHERE version = ?", latest); err != nil {
		return fmt.Errorf("deleting migration record %s: %w", latest, err)
	}
	return tx.Commit()
}

func (db *DB) ensureVersionTable(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, fmt.Errorf("querying applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning migration version: %w", err)
		}
		applied[v] = struct{}{}
	}
	return applied, rows.Err()
}

func (db *DB) apply(ctx context.Context, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.up); err != nil {
		return fmt.Errorf("executing up SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.version, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads the embedded directory and pairs up/down files by
// version. Files that do not match the naming convention are skipped.
func loadMigrations() ([]migration, error) {
	var empty embed.FS
	if MigrationsFS == empty {
		return nil, nil
	}
	entries, err := fs.ReadDir(MigrationsFS, MigrationsDir)
	if err != nil {
		return nil, nil
	}

	byVersion := make(map[string]*migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version, name, up, ok := splitMigrationName(entry.Name())
		if !ok {
			continue
		}
		sql, err := fs.ReadFile(MigrationsFS, path.Join(MigrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		m := byVersion[version]
		if m == nil {
			m = &migration{version: version, name: name}
			byVersion[version] = m
		}
		if up {
			m.up = string(sql)
		} else {
			m.down = string(sql)
		}
	}

	migs := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.up == "" {
			return nil, fmt.Errorf("migration %s has no up file", m.version)
		}
		migs = append(migs, *m)
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].version < migs[j].version })
	return migs, nil
}

// splitMigrationName parses "20260815_120000_initial_schema.up.sql" into
// version "20260815_120000", name "initial_schema", and direction.
func splitMigrationName(filename string) (version, name string, up, ok bool) {
	base, found := strings.CutSuffix(filename, ".sql")
	if !found {
		return "", "", false, false
	}
	switch {
	case strings.HasSuffix(base, ".up"):
		up = true
		base = strings.TrimSuffix(base, ".up")
	case strings.HasSuffix(base, ".down"):
		base = strings.TrimSuffix(base, ".down")
	default:
		return "", "", false, false
	}

	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return "", "", false, false
	}
	version = parts[0] + "_" + parts[1]
	if len(parts) == 3 {
		name = parts[2]
	} else {
		name = base
	}
	return version, name, up, true
}
