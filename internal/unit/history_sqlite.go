package unit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airsentinel/airsentinel-core/internal/reconcile"
)

const (
	defaultOverrideLimit = 50
	maxOverrideLimit     = 200
)

// SQLiteOverrideHistory implements OverrideHistoryRepository using SQLite.
//
// It stores divergence sets as JSON in the override_events table.
type SQLiteOverrideHistory struct {
	db *sql.DB
}

// NewSQLiteOverrideHistory creates a new SQLite override history repository.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteOverrideHistory: Repository instance ready for use
func NewSQLiteOverrideHistory(db *sql.DB) *SQLiteOverrideHistory {
	return &SQLiteOverrideHistory{db: db}
}

// RecordOverride persists one override event.
func (r *SQLiteOverrideHistory) RecordOverride(ctx context.Context, event reconcile.OverrideEvent) error {
	if event.ID == "" {
		return fmt.Errorf("event id is required")
	}
	if event.UnitID == "" {
		return fmt.Errorf("unit id is required")
	}

	divergencesJSON, err := json.Marshal(event.Divergences)
	if err != nil {
		return fmt.Errorf("marshalling divergences: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO override_events (id, unit_id, category, divergences, detected_at)
		 VALUES (?, ?, ?, ?, ?)`,
		event.ID,
		event.UnitID,
		string(event.Category),
		string(divergencesJSON),
		event.DetectedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting override event: %w", err)
	}

	return nil
}

// GetOverrides returns recent override events for a unit, ordered newest first.
func (r *SQLiteOverrideHistory) GetOverrides(ctx context.Context, unitID string, limit int) ([]reconcile.OverrideEvent, error) {
	if unitID == "" {
		return nil, fmt.Errorf("unit id is required")
	}
	if limit <= 0 {
		limit = defaultOverrideLimit
	}
	if limit > maxOverrideLimit {
		limit = maxOverrideLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, unit_id, category, divergences, detected_at
		 FROM override_events
		 WHERE unit_id = ?
		 ORDER BY detected_at DESC
		 LIMIT ?`,
		unitID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying override events: %w", err)
	}
	defer rows.Close()

	events := make([]reconcile.OverrideEvent, 0, limit)
	for rows.Next() {
		var event reconcile.OverrideEvent
		var category string
		var divergencesJSON string
		var detectedAt string

		if err := rows.Scan(&event.ID, &event.UnitID, &category, &divergencesJSON, &detectedAt); err != nil {
			return nil, fmt.Errorf("scanning override event: %w", err)
		}

		event.Category = reconcile.Category(category)

		if err := json.Unmarshal([]byte(divergencesJSON), &event.Divergences); err != nil {
			return nil, fmt.Errorf("unmarshalling divergences: %w", err)
		}

		timestamp, err := parseHistoryTimestamp(detectedAt)
		if err != nil {
			return nil, err
		}
		event.DetectedAt = timestamp

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating override events: %w", err)
	}

	return events, nil
}

// PruneOverrides deletes events older than the given duration.
func (r *SQLiteOverrideHistory) PruneOverrides(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM override_events WHERE detected_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting override events: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseHistoryTimestamp parses a timestamp stored in SQLite.
func parseHistoryTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("detected_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02T15:04:05Z", value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing detected_at: %w", err)
}
