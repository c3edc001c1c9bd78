package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Client writes AirSentinel telemetry (override events, confirmed state
// samples, temperature readings) to an InfluxDB v2 bucket. Writes go
// through the non-blocking batched API: they never stall the
// reconciliation path, and failures surface asynchronously through the
// SetOnError callback. Nil-safe guards live in the calling packages, not
// here; a constructed Client always has a live write API.
type Client struct {
	influx   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	mu        sync.RWMutex
	connected bool
	onError   func(error)
}

// Connect builds the client and proves connectivity with a ping. Returns
// ErrDisabled without touching the network when the config section is
// switched off, so main can treat "no influx" as a normal mode.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	flushSec := cfg.FlushInterval
	if flushSec <= 0 {
		flushSec = 10
	}

	// #nosec G115 -- both values forced positive above
	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flushSec)*1000))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	healthy, err := influx.Ping(ctx)
	if err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		influx.Close()
		return nil, fmt.Errorf("%w: ping reports unhealthy", ErrConnectionFailed)
	}

	c := &Client{
		influx:    influx,
		writeAPI:  influx.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}
	go c.drainWriteErrors(c.writeAPI.Errors())
	return c, nil
}

// drainWriteErrors forwards async write failures to the registered
// callback. The channel closes when the client does.
func (c *Client) drainWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		cb := c.onError
		c.mu.RUnlock()
		if cb != nil {
			cb(err)
		}
	}
}

// SetOnError registers the callback invoked for asynchronous write
// failures. Without one they are dropped.
func (c *Client) SetOnError(cb func(error)) {
	c.mu.Lock()
	c.onError = cb
	c.mu.Unlock()
}

// IsConnected reports the last known connection state; for a live answer
// use HealthCheck.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck pings the server with a bounded timeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.influx.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check: server unhealthy")
	}
	return nil
}

// Flush blocks until buffered points are written. No-op once closed.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes pending points and shuts the client down.
func (c *Client) Close() error {
	if c.influx == nil {
		return nil
	}
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.influx.Close()
	return nil
}
