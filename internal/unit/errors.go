package unit

import "errors"

// Domain errors for the unit package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, unit.ErrUnitNotFound) {
//	    // handle not found case
//	}
var (
	// ErrUnitNotFound is returned when a unit ID does not exist.
	ErrUnitNotFound = errors.New("unit: not found")

	// ErrUnitExists is returned when creating a unit with an ID or slug that already exists.
	ErrUnitExists = errors.New("unit: already exists")

	// ErrInvalidUnit is returned when unit validation fails.
	ErrInvalidUnit = errors.New("unit: invalid")

	// ErrInvalidName is returned when a unit name is empty or too long.
	ErrInvalidName = errors.New("unit: invalid name")

	// ErrInvalidSlug is returned when a slug format is invalid.
	ErrInvalidSlug = errors.New("unit: invalid slug")

	// ErrInvalidHost is returned when host validation fails.
	ErrInvalidHost = errors.New("unit: invalid host")

	// ErrInvalidGeneration is returned when a generation value is not recognised.
	ErrInvalidGeneration = errors.New("unit: invalid generation")

	// ErrInvalidCapability is returned when a capability is not recognised.
	ErrInvalidCapability = errors.New("unit: invalid capability")
)
