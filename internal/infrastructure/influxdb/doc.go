// Package influxdb is the telemetry sink for AirSentinel Core.
//
// Three measurements, all written through the v2 client's batched
// non-blocking API:
//
//   - override_events: one point per debounced manual override
//   - unit_state: one point per accepted poll (power, mode, setpoint)
//   - temperature: inside/outside readings for climate trending
//
// The whole package is optional at runtime. Connect returns ErrDisabled
// when the config section is off, and main simply leaves the notifier and
// ingest sinks unset; the reconciliation path never depends on a write
// landing. Async batch failures come back through SetOnError.
package influxdb
