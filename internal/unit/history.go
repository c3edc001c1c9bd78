package unit

import (
	"context"
	"time"

	"github.com/airsentinel/airsentinel-core/internal/reconcile"
)

// OverrideHistoryRepository stores and retrieves emitted override events.
//
// Every event the reconciliation engine emits is persisted here so the
// REST API can answer "who touched this unit and when" even when the
// time-series database is unavailable.
//
// Implementations must be thread-safe and use UTC timestamps.
type OverrideHistoryRepository interface {
	// RecordOverride persists one override event.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - event: The emitted override event
	//
	// Returns:
	//   - error: nil on success, otherwise the underlying persistence error
	RecordOverride(ctx context.Context, event reconcile.OverrideEvent) error

	// GetOverrides returns recent override events for the unit.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - unitID: Unique unit identifier
	//   - limit: Maximum entries to return (implementation may clamp bounds)
	//
	// Returns:
	//   - []reconcile.OverrideEvent: Ordered newest-first events (may be empty)
	//   - error: nil on success, otherwise the underlying query error
	GetOverrides(ctx context.Context, unitID string, limit int) ([]reconcile.OverrideEvent, error)

	// PruneOverrides deletes events older than the given duration.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - olderThan: Duration to retain
	//
	// Returns:
	//   - int64: Number of rows deleted
	//   - error: nil on success, otherwise the underlying database error
	PruneOverrides(ctx context.Context, olderThan time.Duration) (int64, error)
}
