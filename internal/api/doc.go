// Package api implements the HTTP REST API and WebSocket server for
// AirSentinel Core.
//
// This package provides:
//   - REST endpoints for unit CRUD, confirmed state reads, and override history
//   - Command submission that publishes intents to the MQTT bus
//   - WebSocket hub for real-time override event broadcasts
//   - JWT authentication (HS256 bearer tokens, query-param fallback for WS)
//   - Middleware stack (request ID, logging, recovery, CORS, body limits)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server sits between dashboards and the reconciliation engine.
// Commands flow from the API to unit pollers via MQTT, poll snapshots flow
// back through the ingest service into the engine, and detected overrides
// are broadcast to WebSocket clients by the notifier.
//
//	Dashboards ──HTTP──▶ api.Server ──publish──▶ MQTT command topics
//	     ▲                   │
//	     └────WebSocket──────┘ (override events via Hub)
//
// # Graceful Degradation
//
// The server operates without MQTT or InfluxDB. Reads and WebSocket
// connections keep working, only command submission returns 503.
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
