// Package unit provides the fleet registry for AirSentinel Core.
//
// The registry is the catalogue of every air-conditioning controller the
// system reconciles. It manages unit lifecycle, exposes query operations
// for the REST API and the ingest pipeline, and persists the override
// events the reconciliation engine emits.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────┐
//	│                           Fleet Registry                             │
//	│                                                                      │
//	│  ┌────────────────┐    ┌──────────────────┐    ┌────────────────┐   │
//	│  │    Registry    │    │    Repository    │    │   Validation   │   │
//	│  │ (registry.go)  │───▶│ (repository.go)  │    │(validation.go) │   │
//	│  │                │    │                  │    │                │   │
//	│  │ • CRUD ops     │    │ • SQLite queries │    │ • Unit checks  │   │
//	│  │ • Memory cache │    │ • JSON marshal   │    │ • Slug gen     │   │
//	│  │ • Thread safe  │    │                  │    │                │   │
//	│  └────────────────┘    └──────────────────┘    └────────────────┘   │
//	│          │                       │                                   │
//	│          │             ┌──────────────────────┐                      │
//	│          │             │  History Repository  │                      │
//	│          │             │ (history_sqlite.go)  │                      │
//	│          │             │ • override events    │                      │
//	│          │             │ • newest-first query │                      │
//	│          │             │ • retention pruning  │                      │
//	│          │             └──────────────────────┘                      │
//	└──────────│───────────────────────│───────────────────────────────────┘
//	           ▼                       ▼
//	┌─────────────────────┐   ┌─────────────────────┐
//	│      REST API       │   │   SQLite Database   │
//	│  • GET /units       │   │ (units,             │
//	│  • GET /overrides   │   │  override_events)   │
//	└─────────────────────┘   └─────────────────────┘
//
// # Key Types
//
//   - Unit: one registered air-conditioning controller
//   - Generation: firmware family (brp069, brp072, brp084, airbase, skyfi)
//   - Capability: what a unit supports (cool, heat, swing_vertical, etc.)
//   - OverrideRecord: a persisted override event
//
// # Usage
//
//	repo := unit.NewSQLiteRepository(db)
//	registry := unit.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	u := &unit.Unit{
//	    Name:       "Living Room AC",
//	    Host:       "192.168.1.40",
//	    Generation: unit.GenerationBRP069,
//	    Capabilities: []unit.Capability{
//	        unit.CapCool, unit.CapHeat, unit.CapFanRate,
//	    },
//	}
//	if err := registry.CreateUnit(ctx, u); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. Repository implementations must also be thread-safe.
package unit
