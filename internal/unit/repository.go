package unit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository persists the unit catalogue. The SQLite implementation is
// the real one; tests substitute in-memory fakes.
type Repository interface {
	// GetByID returns the unit with the given ID, or ErrUnitNotFound.
	GetByID(ctx context.Context, id string) (*Unit, error)

	// List returns every unit, ordered by name.
	List(ctx context.Context) ([]Unit, error)

	// ListByGeneration returns the units in one firmware family.
	ListByGeneration(ctx context.Context, g Generation) ([]Unit, error)

	// Create inserts a unit. Returns ErrUnitExists when the ID or slug
	// is already taken.
	Create(ctx context.Context, u *Unit) error

	// Update rewrites a unit, or returns ErrUnitNotFound.
	Update(ctx context.Context, u *Unit) error

	// Delete removes a unit, or returns ErrUnitNotFound.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository stores units in the units table. Capabilities are a
// JSON array column, timestamps are RFC 3339 text, enabled is 0/1.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open SQLite handle.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const unitColumns = `id, name, slug, host, generation, capabilities, enabled, created_at, updated_at`

// unitRow mirrors one row of the units table before decoding.
type unitRow struct {
	id, name, slug, host string
	generation           string
	capsJSON             string
	enabled              int
	createdAt, updatedAt string
}

func (row *unitRow) decode() (*Unit, error) {
	u := Unit{
		ID:         row.id,
		Name:       row.name,
		Slug:       row.slug,
		Host:       row.host,
		Generation: Generation(row.generation),
		Enabled:    row.enabled != 0,
	}

	var err error
	if u.CreatedAt, err = time.Parse(time.RFC3339, row.createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if u.UpdatedAt, err = time.Parse(time.RFC3339, row.updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	if err := json.Unmarshal([]byte(row.capsJSON), &u.Capabilities); err != nil {
		return nil, fmt.Errorf("unmarshalling capabilities: %w", err)
	}
	return &u, nil
}

func scanUnit(scan func(dest ...any) error) (*Unit, error) {
	var row unitRow
	err := scan(&row.id, &row.name, &row.slug, &row.host,
		&row.generation, &row.capsJSON, &row.enabled,
		&row.createdAt, &row.updatedAt)
	if err != nil {
		return nil, err
	}
	return row.decode()
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Unit, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = ?`, id)

	u, err := scanUnit(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying unit by id: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]Unit, error) {
	return r.queryUnits(ctx, `SELECT `+unitColumns+` FROM units ORDER BY name`)
}

func (r *SQLiteRepository) ListByGeneration(ctx context.Context, g Generation) ([]Unit, error) {
	return r.queryUnits(ctx,
		`SELECT `+unitColumns+` FROM units WHERE generation = ? ORDER BY name`, string(g))
}

func (r *SQLiteRepository) Create(ctx context.Context, u *Unit) error {
	capsJSON, err := json.Marshal(u.Capabilities)
	if err != nil {
		return fmt.Errorf("marshalling capabilities: %w", err)
	}

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO units (`+unitColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Slug, u.Host,
		string(u.Generation), string(capsJSON), boolToInt(u.Enabled),
		u.CreatedAt.Format(time.RFC3339), u.UpdatedAt.Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return ErrUnitExists
	}
	if err != nil {
		return fmt.Errorf("inserting unit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, u *Unit) error {
	capsJSON, err := json.Marshal(u.Capabilities)
	if err != nil {
		return fmt.Errorf("marshalling capabilities: %w", err)
	}
	u.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE units SET
			name = ?, slug = ?, host = ?, generation = ?,
			capabilities = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		u.Name, u.Slug, u.Host, string(u.Generation),
		string(capsJSON), boolToInt(u.Enabled),
		u.UpdatedAt.Format(time.RFC3339), u.ID,
	)
	if err != nil {
		return fmt.Errorf("updating unit: %w", err)
	}
	return requireRowHit(result, "updating unit")
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM units WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting unit: %w", err)
	}
	return requireRowHit(result, "deleting unit")
}

func (r *SQLiteRepository) queryUnits(ctx context.Context, query string, args ...any) ([]Unit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying units: %w", err)
	}
	defer rows.Close()

	var units []Unit
	for rows.Next() {
		u, err := scanUnit(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning unit: %w", err)
		}
		units = append(units, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating units: %w", err)
	}
	return units, nil
}

// requireRowHit turns a zero-row UPDATE or DELETE into ErrUnitNotFound.
func requireRowHit(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return ErrUnitNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation recognises a UNIQUE constraint failure from the
// sqlite3 driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
