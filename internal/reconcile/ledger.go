package reconcile

import (
	"time"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
)

// CommandLedger records, per controllable field, the most recent command
// sent for one unit. The ledger is what makes the protection window
// possible: an intent stays active until its window elapses or the field's
// confirmed state catches up with the target, whichever comes first.
//
// At most one intent exists per field; a new command for the same field
// supersedes the prior intent and restarts its window.
//
// The ledger is not safe for concurrent use on its own; the engine
// serializes access per unit.
type CommandLedger struct {
	defaultWindow time.Duration
	fieldWindows  map[aircon.Field]time.Duration
	intents       map[aircon.Field]*CommandIntent
	seq           uint64
}

// NewCommandLedger creates a ledger with the given protection windows.
// fieldWindows may be nil; fields without an override use defaultWindow.
func NewCommandLedger(defaultWindow time.Duration, fieldWindows map[aircon.Field]time.Duration) *CommandLedger {
	return &CommandLedger{
		defaultWindow: defaultWindow,
		fieldWindows:  fieldWindows,
		intents:       make(map[aircon.Field]*CommandIntent),
	}
}

// RecordIntent creates or replaces the intent for a field, bumping the
// sequence number and restarting the protection window.
func (l *CommandLedger) RecordIntent(f aircon.Field, target string, now time.Time) *CommandIntent {
	l.seq++
	intent := &CommandIntent{
		Field:    f,
		Target:   target,
		IssuedAt: now,
		Seq:      l.seq,
	}
	l.intents[f] = intent
	return intent
}

// ActiveIntent returns the intent for a field if its protection window is
// still open at now, or nil otherwise. Expired intents are removed as a
// side effect so the ledger never grows beyond the field set.
func (l *CommandLedger) ActiveIntent(f aircon.Field, now time.Time) *CommandIntent {
	intent, ok := l.intents[f]
	if !ok {
		return nil
	}
	if now.Sub(intent.IssuedAt) > l.window(f) {
		delete(l.intents, f)
		return nil
	}
	return intent
}

// Clear removes the intent for a field. Called once confirmed state matches
// the target, so the protection window never outlives its purpose.
func (l *CommandLedger) Clear(f aircon.Field) {
	delete(l.intents, f)
}

// window returns the protection window for a field.
func (l *CommandLedger) window(f aircon.Field) time.Duration {
	if w, ok := l.fieldWindows[f]; ok {
		return w
	}
	return l.defaultWindow
}
