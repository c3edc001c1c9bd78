// Package notify fans out override events to external sinks.
//
// The reconciliation engine produces events and hands them to its caller;
// it never publishes, persists, or broadcasts anything itself. This package
// is that caller-side fan-out: one event in, up to four sinks out.
//
//	                 ┌──────────────────────┐
//	OverrideEvent ──▶│      Notifier        │
//	                 └──────────┬───────────┘
//	          ┌─────────────┬───┴──────┬──────────────┐
//	          ▼             ▼          ▼              ▼
//	     MQTT publish   WebSocket   SQLite        InfluxDB
//	     (core/override) broadcast  history       point
//
// Every sink is optional; a Notifier constructed with nil sinks simply
// skips them. Sink failures are logged and never propagated, so a broker
// outage or a full disk cannot stall reconciliation.
package notify
