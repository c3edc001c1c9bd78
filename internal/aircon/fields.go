package aircon

import (
	"strconv"
)

// Field identifies one controllable setting on an air-conditioning unit.
//
// The string values match the traditional Daikin API keys, which all
// firmware bridges normalize to regardless of their native wire format.
type Field string

// Controllable fields.
const (
	// FieldPower is the unit power state: "1" (on) or "0" (off).
	FieldPower Field = "pow"

	// FieldMode is the HVAC operating mode: auto, cool, heat, fan, dry.
	FieldMode Field = "mode"

	// FieldTargetTemp is the target temperature as a decimal string
	// (e.g. "24.0"). Non-numeric placeholders ("--", "M") appear when the
	// mode has no setpoint.
	FieldTargetTemp Field = "stemp"

	// FieldFanRate is the fan speed: auto, quiet, or "1".."5".
	FieldFanRate Field = "f_rate"

	// FieldFanDir is the swing direction: off, vertical, horizontal, 3d.
	FieldFanDir Field = "f_dir"
)

// AllFields returns all recognized controllable fields.
func AllFields() []Field {
	return []Field{FieldPower, FieldMode, FieldTargetTemp, FieldFanRate, FieldFanDir}
}

// KnownField reports whether f is one of the recognized controllable fields.
// Values for unknown fields are ignored by the reconciliation pipeline.
func KnownField(f Field) bool {
	switch f {
	case FieldPower, FieldMode, FieldTargetTemp, FieldFanRate, FieldFanDir:
		return true
	default:
		return false
	}
}

// ValuesEqual compares two normalized values for a field under that field's
// comparison rule.
//
// Discrete fields (power, mode, fan rate, fan direction) compare exactly on
// their normalized codes. Target temperature compares numerically within
// tempTolerance degrees, absorbing device-side half-degree rounding. A
// temperature value that fails to parse falls back to exact string
// comparison rather than producing an error, so one malformed field can
// never block processing of the others.
func ValuesEqual(f Field, a, b string, tempTolerance float64) bool {
	if f != FieldTargetTemp {
		return a == b
	}

	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		// Placeholder setpoints ("--", "M") and malformed values compare
		// as opaque strings.
		return a == b
	}

	diff := fa - fb
	if diff < 0 {
		diff = -diff
	}
	return diff <= tempTolerance
}
