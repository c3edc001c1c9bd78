package reconcile

import (
	"time"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
)

// ConfirmedStateStore holds the last poll-confirmed value for each field of
// one unit. It is the engine's ground truth: it is mutated only by
// poll-origin snapshots, never as a side effect of issuing a command.
//
// The store is not safe for concurrent use on its own; the engine
// serializes access per unit.
type ConfirmedStateStore struct {
	values    map[aircon.Field]string
	updatedAt time.Time
}

// NewConfirmedStateStore creates an empty store. All fields are absent
// until the first poll arrives.
func NewConfirmedStateStore() *ConfirmedStateStore {
	return &ConfirmedStateStore{
		values: make(map[aircon.Field]string),
	}
}

// Update merges a poll-origin snapshot into the store. Fields present in
// the snapshot replace the stored values; fields not present are left
// unchanged, so a partial poll never erases knowledge.
//
// Snapshots with any other origin are ignored: confirmed state is poll-only.
func (s *ConfirmedStateStore) Update(snap aircon.Snapshot) {
	if snap.Origin() != aircon.OriginPoll {
		return
	}
	for _, f := range snap.Fields() {
		if v, ok := snap.Value(f); ok {
			s.values[f] = v
		}
	}
	s.updatedAt = snap.TakenAt()
}

// Read returns the confirmed value for a field, and whether the field has
// ever been confirmed.
func (s *ConfirmedStateStore) Read(f aircon.Field) (string, bool) {
	v, ok := s.values[f]
	return v, ok
}

// Snapshot returns the confirmed state as a poll-origin snapshot stamped
// with the time of the last accepted poll.
func (s *ConfirmedStateStore) Snapshot() aircon.Snapshot {
	return aircon.NewSnapshot(s.values, s.updatedAt, aircon.OriginPoll)
}

// UpdatedAt returns the timestamp of the last accepted poll, or the zero
// time if no poll has been accepted yet.
func (s *ConfirmedStateStore) UpdatedAt() time.Time {
	return s.updatedAt
}

// Len returns the number of confirmed fields.
func (s *ConfirmedStateStore) Len() int {
	return len(s.values)
}
