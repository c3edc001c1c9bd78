package reconcile

import (
	"time"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
)

// ProtectionPolicy decides whether a divergence should be suppressed as
// "command still in flight" or treated as a real external change.
//
// The policy is a pure function of its inputs: it performs no I/O and keeps
// no state beyond what the CommandLedger already tracks.
type ProtectionPolicy struct {
	tempTolerance float64
}

// NewProtectionPolicy creates a policy with the given temperature tolerance
// (used when comparing confirmed values to intent targets).
func NewProtectionPolicy(tempTolerance float64) *ProtectionPolicy {
	return &ProtectionPolicy{tempTolerance: tempTolerance}
}

// Filter returns the subset of divergences that should be treated as real.
//
// For a divergence on field F with expected (confirmed) value E and actual
// value A:
//
//   - No active intent for F: the mismatch is real by default. With nobody
//     commanding the unit, a change between successive polls can only come
//     from an external actor.
//
//   - Active intent for F whose effect the confirmed state has NOT yet
//     caught up with (confirmed != target): the divergence can still be
//     explained by the command being in flight: the device is slow to
//     reach a value we already consider unconfirmed. Suppressed. This
//     covers both A == target (command taking effect, poll ahead of
//     confirmation) and transitional values observed mid-flight.
//
//   - Active intent for F whose target the confirmed state already equals:
//     the system has already seen the command succeed, so a later differing
//     value is not a delayed command effect. Real.
func (p *ProtectionPolicy) Filter(divergences []Divergence, ledger *CommandLedger, confirmed *ConfirmedStateStore, now time.Time) []Divergence {
	if len(divergences) == 0 {
		return nil
	}

	real := make([]Divergence, 0, len(divergences))
	for _, div := range divergences {
		intent := ledger.ActiveIntent(div.Field, now)
		if intent == nil {
			real = append(real, div)
			continue
		}

		confirmedVal, ok := confirmed.Read(div.Field)
		if ok && aircon.ValuesEqual(div.Field, confirmedVal, intent.Target, p.tempTolerance) {
			// Command already confirmed; this divergence is something new.
			real = append(real, div)
			continue
		}

		// Command still unconfirmed: assume device latency, not override.
	}

	if len(real) == 0 {
		return nil
	}
	return real
}
