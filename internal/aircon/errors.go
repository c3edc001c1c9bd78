package aircon

import "errors"

// Domain errors for the aircon package.
var (
	// ErrBadResponse is returned when a controller response body is missing
	// the OK return marker.
	ErrBadResponse = errors.New("aircon: non-OK controller response")

	// ErrUnknownField is returned when a field outside the recognized
	// enumeration is used where a known field is required.
	ErrUnknownField = errors.New("aircon: unknown field")
)
