package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
)

// Category is the semantic classification of an override event.
type Category string

// Override categories, ordered by operational significance.
const (
	CategoryPower       Category = "power"
	CategoryTemperature Category = "temperature"
	CategoryFanRate     Category = "fan_rate"
	CategoryFanDir      Category = "fan_dir"
	CategoryMode        Category = "mode"

	// CategoryCombined is used when more than one non-power field diverges
	// in the same reconciliation pass.
	CategoryCombined Category = "combined"
)

// Divergence is a detected difference between the confirmed value and the
// actually observed value for one field. Divergences are ephemeral: they are
// produced and consumed within a single reconciliation pass.
type Divergence struct {
	Field    aircon.Field  `json:"field"`
	Expected string        `json:"expected"`
	Actual   string        `json:"actual"`
	Source   aircon.Origin `json:"source"`
}

// OverrideEvent is a classified, debounced notification that an external
// actor changed unit state outside the controller's knowledge. The engine
// hands events to the caller and does not persist them.
type OverrideEvent struct {
	ID          string       `json:"id"`
	UnitID      string       `json:"unit_id"`
	Category    Category     `json:"category"`
	Divergences []Divergence `json:"divergences"`
	DetectedAt  time.Time    `json:"detected_at"`
}

// CommandIntent records the most recent command sent for one field: what
// value was requested and when. Seq disambiguates overlapping commands for
// the same field; a newer intent always supersedes the older one.
type CommandIntent struct {
	Field    aircon.Field
	Target   string
	IssuedAt time.Time
	Seq      uint64
}

// Options configures reconciliation behavior for one unit. Protection
// windows differ by firmware generation: older controllers confirm state
// transitions slower and need a wider window.
type Options struct {
	// ProtectionWindow is how long after a command an unconfirmed mismatch
	// is assumed to be device latency rather than an external change.
	// Tuned to roughly 2-3x the polling interval.
	ProtectionWindow time.Duration

	// FieldWindows overrides the protection window for specific fields.
	FieldWindows map[aircon.Field]time.Duration

	// DebounceCooldown suppresses duplicate events of the same category
	// within this interval, absorbing overlapping poll and command-time
	// detections of the same physical action.
	DebounceCooldown time.Duration

	// TempTolerance is the maximum difference, in degrees, at which two
	// target temperatures are considered equal. Absorbs device-side
	// half-degree rounding.
	TempTolerance float64
}

// Defaults for Options.
const (
	DefaultProtectionWindow = 30 * time.Second
	DefaultDebounceCooldown = 5 * time.Second
	DefaultTempTolerance    = 0.5
)

// DefaultOptions returns the reconciliation options used when a unit does
// not specify its own.
func DefaultOptions() Options {
	return Options{
		ProtectionWindow: DefaultProtectionWindow,
		DebounceCooldown: DefaultDebounceCooldown,
		TempTolerance:    DefaultTempTolerance,
	}
}

// withDefaults fills zero-valued fields from DefaultOptions.
func (o Options) withDefaults() Options {
	if o.ProtectionWindow <= 0 {
		o.ProtectionWindow = DefaultProtectionWindow
	}
	if o.DebounceCooldown <= 0 {
		o.DebounceCooldown = DefaultDebounceCooldown
	}
	if o.TempTolerance <= 0 {
		o.TempTolerance = DefaultTempTolerance
	}
	return o
}

// GenerateEventID creates a new UUID for an override event.
func GenerateEventID() string {
	return uuid.New().String()
}
