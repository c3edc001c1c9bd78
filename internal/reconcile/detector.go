package reconcile

import (
	"github.com/airsentinel/airsentinel-core/internal/aircon"
)

// MismatchDetector compares an incoming snapshot against confirmed state and
// produces per-field divergences.
type MismatchDetector struct {
	tempTolerance float64
}

// NewMismatchDetector creates a detector with the given temperature
// comparison tolerance.
func NewMismatchDetector(tempTolerance float64) *MismatchDetector {
	return &MismatchDetector{tempTolerance: tempTolerance}
}

// Detect returns one divergence for each field present in both the snapshot
// and the confirmed store whose values differ under that field's comparison
// rule. Fields never confirmed produce no divergence: unknown is not a
// mismatch. The divergence source is tagged from the snapshot's origin.
func (d *MismatchDetector) Detect(snap aircon.Snapshot, confirmed *ConfirmedStateStore) []Divergence {
	var divergences []Divergence

	for _, f := range snap.Fields() {
		actual, _ := snap.Value(f)
		expected, ok := confirmed.Read(f)
		if !ok {
			continue
		}
		if aircon.ValuesEqual(f, expected, actual, d.tempTolerance) {
			continue
		}
		divergences = append(divergences, Divergence{
			Field:    f,
			Expected: expected,
			Actual:   actual,
			Source:   snap.Origin(),
		})
	}

	return divergences
}
