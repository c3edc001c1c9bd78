package reconcile

import (
	"time"
)

// Debouncer suppresses duplicate override events of the same category
// within a cooldown window. Overlapping poll and command-time detections of
// the same physical action would otherwise notify twice.
//
// Categories are independent: a power event never suppresses a later
// temperature event.
//
// The debouncer is not safe for concurrent use on its own; the engine
// serializes access per unit.
type Debouncer struct {
	cooldown    time.Duration
	lastEmitted map[Category]time.Time
}

// NewDebouncer creates a debouncer with the given cooldown.
func NewDebouncer(cooldown time.Duration) *Debouncer {
	return &Debouncer{
		cooldown:    cooldown,
		lastEmitted: make(map[Category]time.Time),
	}
}

// Admit reports whether an event of the given category may be emitted at
// now, and records the emission if so.
func (d *Debouncer) Admit(category Category, now time.Time) bool {
	if last, ok := d.lastEmitted[category]; ok {
		if now.Sub(last) < d.cooldown {
			return false
		}
	}
	d.lastEmitted[category] = now
	return true
}
