package reconcile

import "errors"

// Domain errors for the reconcile package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, reconcile.ErrUnitNotRegistered) {
//	    // caller misuse: unit was never registered with the engine
//	}
var (
	// ErrUnitNotRegistered is returned when the engine is invoked for a
	// unit id that was never registered. This is the only caller error the
	// engine surfaces; malformed snapshots degrade to "no divergence".
	ErrUnitNotRegistered = errors.New("reconcile: unit not registered")

	// ErrUnitExists is returned when registering a unit id twice.
	ErrUnitExists = errors.New("reconcile: unit already registered")
)
