// AirSentinel Core - Air-Conditioning State Reconciliation Service
//
// This is the main entry point for the AirSentinel Core application.
// AirSentinel watches Daikin-style air-conditioning controllers through
// protocol bridges on MQTT and detects when someone changes unit state
// outside the system: a wall remote, the vendor app, a physical switch.
//
// The pipeline: bridge pollers publish unit snapshots to MQTT, the ingest
// service feeds them into the reconciliation engine, and confirmed
// overrides fan out to MQTT, WebSocket dashboards, SQLite history, and
// InfluxDB trends.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/airsentinel/airsentinel-core/migrations"

	"github.com/airsentinel/airsentinel-core/internal/api"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/database"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/influxdb"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/logging"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/mqtt"
	"github.com/airsentinel/airsentinel-core/internal/ingest"
	"github.com/airsentinel/airsentinel-core/internal/notify"
	"github.com/airsentinel/airsentinel-core/internal/reconcile"
	"github.com/airsentinel/airsentinel-core/internal/unit"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// Override history housekeeping.
const (
	historyRetention     = 90 * 24 * time.Hour
	historyPruneInterval = 24 * time.Hour
)

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting AirSentinel Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise unit registry and override history
	unitRepo := unit.NewSQLiteRepository(db.DB)
	registry := unit.NewRegistry(unitRepo)
	registry.SetLogger(log)

	if refreshErr := registry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading unit registry: %w", refreshErr)
	}
	log.Info("unit registry initialised", "units", registry.UnitCount())

	history := unit.NewSQLiteOverrideHistory(db.DB)

	// Reconciliation engine
	engine := reconcile.NewEngine()
	engine.SetLogger(log)

	if seedErr := seedUnits(ctx, cfg, registry, log); seedErr != nil {
		return fmt.Errorf("seeding units: %w", seedErr)
	}
	if regErr := registerUnits(ctx, cfg, registry, engine, log); regErr != nil {
		return fmt.Errorf("registering units: %w", regErr)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, shared between the notifier and the API server
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Override notifier: fans events out to MQTT, WebSocket, history, Influx.
	// The metrics sink must stay a nil interface when Influx is disabled.
	var metricsSink notify.MetricsWriter
	var telemetrySink ingest.Telemetry
	if influxClient != nil {
		metricsSink = influxClient
		telemetrySink = influxClient
	}
	notifier := notify.NewNotifier(mqttClient, hub, history, metricsSink)
	notifier.SetLogger(log)

	// Ingest service: bridge topics into the engine
	ingestSvc := ingest.NewService(engine, mqttClient, notifier, telemetrySink, byte(cfg.MQTT.QoS))
	ingestSvc.SetLogger(log)
	if startErr := ingestSvc.Start(); startErr != nil {
		return fmt.Errorf("starting ingest: %w", startErr)
	}
	defer func() {
		log.Info("stopping ingest")
		ingestSvc.Stop()
	}()
	log.Info("ingest service started", "qos", cfg.MQTT.QoS)

	// REST API + WebSocket server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Registry:    registry,
		Engine:      engine,
		History:     history,
		MQTT:        mqttClient,
		Ingest:      ingestSvc,
		Notifier:    notifier,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Background override history pruning
	go pruneHistoryLoop(ctx, history, log)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Ingest subscriptions
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("AirSentinel Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses AIRSENTINEL_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AIRSENTINEL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// seedUnits creates catalogue entries for units declared in config.yaml.
// Existing slugs are left untouched, so seeds are safe across restarts.
func seedUnits(ctx context.Context, cfg *config.Config, registry *unit.Registry, log *logging.Logger) error {
	for _, seed := range cfg.Units {
		slug := unit.GenerateSlug(seed.Name)
		if _, err := registry.GetUnitBySlug(ctx, slug); err == nil {
			continue
		} else if !errors.Is(err, unit.ErrUnitNotFound) {
			return fmt.Errorf("looking up seed %q: %w", seed.Name, err)
		}

		caps := make([]unit.Capability, 0, len(seed.Caps))
		for _, c := range seed.Caps {
			caps = append(caps, unit.Capability(c))
		}

		u := &unit.Unit{
			Name:         seed.Name,
			Host:         seed.Host,
			Generation:   unit.Generation(seed.Generation),
			Capabilities: caps,
			Enabled:      true,
		}
		if err := registry.CreateUnit(ctx, u); err != nil {
			return fmt.Errorf("creating seed %q: %w", seed.Name, err)
		}
		log.Info("seeded unit", "name", seed.Name, "id", u.ID, "generation", seed.Generation)
	}
	return nil
}

// registerUnits registers every enabled catalogue unit with the engine,
// resolving the protection window per firmware generation.
func registerUnits(ctx context.Context, cfg *config.Config, registry *unit.Registry, engine *reconcile.Engine, log *logging.Logger) error {
	units, err := registry.ListEnabledUnits(ctx)
	if err != nil {
		return fmt.Errorf("listing units: %w", err)
	}

	for i := range units {
		u := &units[i]
		if regErr := engine.Register(u.ID, engineOptions(cfg, u)); regErr != nil {
			return fmt.Errorf("registering %q: %w", u.ID, regErr)
		}
	}

	log.Info("units registered with engine", "count", len(units))
	return nil
}

// engineOptions builds reconciliation options for one unit from config,
// falling back to firmware-generation defaults.
func engineOptions(cfg *config.Config, u *unit.Unit) reconcile.Options {
	opts := reconcile.DefaultOptions()
	opts.ProtectionWindow = cfg.ProtectionWindowFor(string(u.Generation), u.Generation.DefaultProtectionWindow())
	if cfg.Reconcile.DebounceCooldown > 0 {
		opts.DebounceCooldown = cfg.GetDebounceCooldown()
	}
	if cfg.Reconcile.TempTolerance > 0 {
		opts.TempTolerance = cfg.Reconcile.TempTolerance
	}
	return opts
}

// pruneHistoryLoop deletes old override events once a day.
func pruneHistoryLoop(ctx context.Context, history unit.OverrideHistoryRepository, log *logging.Logger) {
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := history.PruneOverrides(ctx, historyRetention)
			if err != nil {
				log.Error("override history prune failed", "error", err)
				continue
			}
			if deleted > 0 {
				log.Info("pruned override history", "deleted", deleted)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
