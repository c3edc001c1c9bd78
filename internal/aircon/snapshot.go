package aircon

import (
	"sort"
	"time"
)

// Origin tags how a snapshot was obtained.
type Origin string

// Snapshot origins.
const (
	// OriginPoll marks a snapshot produced by a periodic status poll.
	// Only poll-origin snapshots may advance confirmed state.
	OriginPoll Origin = "poll"

	// OriginCommandResponse marks a snapshot returned by a command call.
	// Some firmware generations echo pre/post state in the set response;
	// these are used for fast-path detection only.
	OriginCommandResponse Origin = "command-response"
)

// Snapshot is an immutable set of normalized field values observed at one
// instant. Snapshots are safe to share between goroutines after creation.
type Snapshot struct {
	values  map[Field]string
	takenAt time.Time
	origin  Origin
}

// NewSnapshot creates a snapshot from the given values. The map is copied;
// unknown fields are dropped so a bridge reporting extra keys never leaks
// them into the reconciliation pipeline.
func NewSnapshot(values map[Field]string, takenAt time.Time, origin Origin) Snapshot {
	cpy := make(map[Field]string, len(values))
	for f, v := range values {
		if KnownField(f) {
			cpy[f] = v
		}
	}
	return Snapshot{values: cpy, takenAt: takenAt, origin: origin}
}

// Value returns the value for a field and whether the field is present.
func (s Snapshot) Value(f Field) (string, bool) {
	v, ok := s.values[f]
	return v, ok
}

// Fields returns the fields present in the snapshot in stable order.
func (s Snapshot) Fields() []Field {
	fields := make([]Field, 0, len(s.values))
	for f := range s.values {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// Values returns a copy of the snapshot's field values.
func (s Snapshot) Values() map[Field]string {
	cpy := make(map[Field]string, len(s.values))
	for f, v := range s.values {
		cpy[f] = v
	}
	return cpy
}

// TakenAt returns the observation timestamp.
func (s Snapshot) TakenAt() time.Time { return s.takenAt }

// Origin returns how the snapshot was obtained.
func (s Snapshot) Origin() Origin { return s.origin }

// Len returns the number of fields present.
func (s Snapshot) Len() int { return len(s.values) }

// IsZero reports whether the snapshot carries no fields and no timestamp.
func (s Snapshot) IsZero() bool {
	return len(s.values) == 0 && s.takenAt.IsZero()
}
