package unit

import "time"

// Unit represents one registered air-conditioning controller.
// This matches the database schema in migrations/20260815_120000_initial_schema.up.sql.
type Unit struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Host is the network address of the controller, as the protocol
	// bridge dials it. Stored for operator reference; the core never
	// opens a connection itself.
	Host string `json:"host"`

	// Generation is the firmware family of the controller. It drives the
	// default protection window: older families confirm commands slower.
	Generation Generation `json:"generation"`

	// Capabilities the bridge discovered for this unit.
	Capabilities []Capability `json:"capabilities"`

	// Enabled controls whether state for this unit is reconciled.
	// Disabled units stay in the catalogue but are skipped by ingest.
	Enabled bool `json:"enabled"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Unit.
// The capabilities slice is cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (u *Unit) DeepCopy() *Unit {
	if u == nil {
		return nil
	}

	cpy := *u

	if u.Capabilities != nil {
		cpy.Capabilities = make([]Capability, len(u.Capabilities))
		copy(cpy.Capabilities, u.Capabilities)
	}

	return &cpy
}

// HasCapability reports whether the unit advertises the given capability.
func (u *Unit) HasCapability(c Capability) bool {
	for _, cap := range u.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

// Generation identifies the firmware family of a controller.
type Generation string

// Generation constants.
const (
	GenerationBRP069  Generation = "brp069"
	GenerationBRP072  Generation = "brp072"
	GenerationBRP084  Generation = "brp084"
	GenerationAirbase Generation = "airbase"
	GenerationSkyFi   Generation = "skyfi"
)

// AllGenerations returns all valid generation values.
func AllGenerations() []Generation {
	return []Generation{
		GenerationBRP069, GenerationBRP072, GenerationBRP084,
		GenerationAirbase, GenerationSkyFi,
	}
}

// DefaultProtectionWindow returns how long a command issued to this
// firmware family is allowed to remain unconfirmed before a divergence
// counts as an override. Cloud-polled and serial families take longer
// to reflect a command in their reported state.
func (g Generation) DefaultProtectionWindow() time.Duration {
	switch g {
	case GenerationBRP084:
		return 20 * time.Second
	case GenerationAirbase:
		return 45 * time.Second
	case GenerationSkyFi:
		return 60 * time.Second
	default:
		return 30 * time.Second
	}
}

// Capability represents what a unit supports.
type Capability string

// Capability constants.
const (
	CapCool            Capability = "cool"
	CapHeat            Capability = "heat"
	CapDry             Capability = "dry"
	CapFanOnly         Capability = "fan_only"
	CapAutoMode        Capability = "auto_mode"
	CapFanRate         Capability = "fan_rate"
	CapSwingVertical   Capability = "swing_vertical"
	CapSwingHorizontal Capability = "swing_horizontal"
	CapQuietFan        Capability = "quiet_fan"
)

// AllCapabilities returns all valid capability values.
func AllCapabilities() []Capability {
	return []Capability{
		CapCool, CapHeat, CapDry, CapFanOnly, CapAutoMode,
		CapFanRate, CapSwingVertical, CapSwingHorizontal, CapQuietFan,
	}
}
