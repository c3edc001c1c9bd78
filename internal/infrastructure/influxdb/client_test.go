package influxdb_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/influxdb"
)

func devConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "airsentinel-dev-token",
		Org:           "airsentinel",
		Bucket:        "metrics",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// connectOrSkip skips when no local InfluxDB is reachable, so the write
// tests only run against a dev instance.
func connectOrSkip(t *testing.T) *influxdb.Client {
	t.Helper()
	client, err := influxdb.Connect(devConfig())
	if err != nil {
		t.Skipf("no local InfluxDB: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := devConfig()
	cfg.Enabled = false

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := devConfig()
	cfg.URL = "http://127.0.0.1:19086" // nothing listens here

	if _, err := influxdb.Connect(cfg); !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_BadBatchSettingsGetDefaults(t *testing.T) {
	// Zero and negative values must not panic the uint conversion; the
	// client substitutes defaults before handing them to the library.
	cfg := devConfig()
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg)
	if err != nil {
		t.Skipf("no local InfluxDB: %v", err)
	}
	client.Close()
}

func TestClose_ZeroValue(t *testing.T) {
	var client influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero-value client error = %v", err)
	}
}

func TestHealthCheck_AfterClose(t *testing.T) {
	client := connectOrSkip(t)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestWriteMetrics_Flush(t *testing.T) {
	client := connectOrSkip(t)

	client.WriteOverrideEvent("living-room-ac", "temperature", 1, time.Now())
	client.WriteUnitStateMetric("living-room-ac", "cool", true, 23.5)
	client.WriteTemperatureMetric("living-room-ac", 22.5, 31.0)

	// The write API is fire-and-forget; Flush surfaces nothing but must
	// not block or panic with points buffered.
	client.Flush()
}
