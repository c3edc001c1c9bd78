// Package ingest drives the reconciliation engine from the MQTT bus.
//
// Firmware bridges poll each air-conditioning controller over its native
// HTTP encoding and publish normalized results; this package is the Core's
// consumer side of that contract. It subscribes to three topic families:
//
//	airsentinel/state/{unit}    poll snapshots (ground truth)
//	airsentinel/ack/{unit}      command-response snapshots (fast path)
//	airsentinel/command/{unit}  command issuance (protection intent)
//
// Each message is parsed, fed to the engine, and any override events the
// engine emits are handed to the notifier. Accepted poll snapshots also
// produce telemetry points (confirmed state, inside/outside temperature).
//
// Parsing is lenient where the bus is untrusted: unknown fields are logged
// and ignored, and a single malformed value never blocks the rest of the
// snapshot. A malformed envelope (bad JSON, no fields) drops the whole
// message with a warning.
package ingest
