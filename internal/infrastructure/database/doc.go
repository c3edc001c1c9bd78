// Package database owns the SQLite handle for AirSentinel Core.
//
// SQLite holds the durable, low-volume data: the unit registry and the
// override event history. Time-series telemetry goes to InfluxDB instead.
// The file opens in WAL mode with STRICT tables so readers do not block
// the single writer and column types are enforced by the engine.
//
// Schema changes ship as embedded .up/.down SQL pairs in the migrations
// package and are applied by Migrate at startup, each in its own
// transaction. Migrations are additive: new columns arrive nullable or
// with defaults, and nothing is dropped or renamed.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
