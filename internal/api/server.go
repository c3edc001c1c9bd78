package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/airsentinel/airsentinel-core/internal/aircon"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/config"
	"github.com/airsentinel/airsentinel-core/internal/infrastructure/logging"
	"github.com/airsentinel/airsentinel-core/internal/ingest"
	"github.com/airsentinel/airsentinel-core/internal/notify"
	"github.com/airsentinel/airsentinel-core/internal/reconcile"
	"github.com/airsentinel/airsentinel-core/internal/unit"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ReconcileEngine is the surface of the reconciliation engine the API
// needs. Implemented by *reconcile.Engine.
type ReconcileEngine interface {
	Register(unitID string, opts reconcile.Options) error
	Deregister(unitID string)
	ConfirmedState(unitID string) (aircon.Snapshot, error)
	OnCommandIssued(unitID string, fields map[aircon.Field]string, now time.Time) error
}

// CommandPublisher publishes commands onto the bridge command topic.
// Implemented by *mqtt.Client. Optional; without it POST command fails
// with 503.
type CommandPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Registry    *unit.Registry
	Engine      ReconcileEngine
	History     unit.OverrideHistoryRepository
	MQTT        CommandPublisher
	Ingest      *ingest.Service  // optional: exposes ingest counters on /metrics
	Notifier    *notify.Notifier // optional: exposes delivery counters on /metrics
	ExternalHub *Hub             // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for AirSentinel Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	registry    *unit.Registry
	engine      ReconcileEngine
	history     unit.OverrideHistoryRepository
	mqtt        CommandPublisher
	ingest      *ingest.Service
	notifier    *notify.Notifier
	version     string
	startTime   time.Time
	server      *http.Server
	hub         *Hub
	externalHub bool               // true if hub was injected externally
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("unit registry is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("reconciliation engine is required")
	}
	// MQTT and history are optional; command submission and override
	// queries degrade to errors when absent.

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		registry:  deps.Registry,
		engine:    deps.Engine,
		history:   deps.History,
		mqtt:      deps.MQTT,
		ingest:    deps.Ingest,
		notifier:  deps.Notifier,
		version:   deps.Version,
		startTime: time.Now(),
	}

	// Use externally-provided hub if available (needed when the notifier
	// also requires the hub for override broadcasting).
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub, and launches the HTTP
// listener in a background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	// Create WebSocket hub (unless one was injected externally)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
