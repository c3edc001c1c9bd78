// Package reconcile implements the device-state reconciliation and
// override-detection engine for AirSentinel Core.
//
// The engine decides, from a stream of command notifications and periodic
// status polls, whether a physical unit's observed state diverged from what
// the controlling system intended, i.e. whether a human used the remote
// control (or another actor) to change power, temperature, fan speed, swing
// or mode while automation believed it was in control.
//
// # Architecture
//
//	┌────────────────────────────────────────────────────────────────────┐
//	│                       ReconciliationEngine                         │
//	│                                                                    │
//	│  OnPoll / OnCommandResult                                          │
//	│      │                                                             │
//	│      ▼                                                             │
//	│  MismatchDetector ──▶ ProtectionPolicy ──▶ Classifier ──▶ Debouncer│
//	│      │ (vs confirmed)    (in-flight?)       (category)   (cooldown)│
//	│      ▼                                                             │
//	│  ConfirmedStateStore  ◀── poll-origin snapshots only               │
//	│  CommandLedger        ◀── OnCommandIssued                          │
//	└────────────────────────────────────────────────────────────────────┘
//
// Confirmed state is the engine's belief about ground truth and advances
// only on poll-origin snapshots. Command-response snapshots feed the same
// detection pipeline as a fast path but never move confirmed state.
//
// The protection window suppresses false positives caused by device
// latency: after a command is issued, a divergence that can still be
// explained by the command being in flight is not an override. Once the
// command's effect has been confirmed by a poll, any later divergence is
// real.
//
// # Determinism and concurrency
//
// The engine performs no I/O and reads no clocks; all timestamps are
// supplied by the caller. Calls for the same unit are serialized by a
// per-unit mutex; different units reconcile independently. Snapshot
// acquisition, rate limiting and event publication are the caller's
// responsibility.
package reconcile
