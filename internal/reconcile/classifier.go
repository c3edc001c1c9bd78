package reconcile

import (
	"github.com/airsentinel/airsentinel-core/internal/aircon"
)

// categoryPriority is the ordered field → category table used for
// classification. Adding a field is a data change here, not a control-flow
// change. Power sits first: a power flip means a person turned the unit
// fully off or on, and must never be masked by a simultaneous lesser
// change.
var categoryPriority = []struct {
	field    aircon.Field
	category Category
}{
	{aircon.FieldPower, CategoryPower},
	{aircon.FieldTargetTemp, CategoryTemperature},
	{aircon.FieldFanRate, CategoryFanRate},
	{aircon.FieldFanDir, CategoryFanDir},
	{aircon.FieldMode, CategoryMode},
}

// Classify maps a non-empty set of divergences to a semantic category.
//
// A power divergence always classifies as power, regardless of what else
// diverged. Otherwise a single diverging field classifies as that field's
// category, and multiple non-power fields classify as combined. The full
// divergence set travels with the event either way.
func Classify(divergences []Divergence) Category {
	present := make(map[aircon.Field]bool, len(divergences))
	for _, d := range divergences {
		present[d.Field] = true
	}

	if present[aircon.FieldPower] {
		return CategoryPower
	}
	if len(present) > 1 {
		return CategoryCombined
	}

	for _, entry := range categoryPriority {
		if present[entry.field] {
			return entry.category
		}
	}

	// Divergences only ever carry known fields, but stay total anyway.
	return CategoryCombined
}
