package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hearthware/emberbridge/internal/infrastructure/config"
	"github.com/hearthware/emberbridge/internal/infrastructure/database"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// healthCheckTimeout bounds each dependency probe inside the health handler.
const healthCheckTimeout = 2 * time.Second

// Logger is the minimal logging interface needed by the API server.
// Satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// HealthChecker probes a dependency for liveness. Satisfied by the MQTT,
// database, and InfluxDB clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// SessionSource reports which devices this instance currently drives.
// Satisfied by *bridge.Bridge.
type SessionSource interface {
	ConnectedDevices() []string
}

// Store lists paired devices for the read-only device endpoint.
// Satisfied by *database.DB.
type Store interface {
	ListPairedDevices(ctx context.Context) ([]database.PairedDevice, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   Logger
	Sessions SessionSource
	Store    Store

	// Checks maps a dependency name to its health probe. Names appear
	// verbatim in the health response.
	Checks map[string]HealthChecker

	// Gatherer backs the Prometheus scrape endpoint.
	Gatherer prometheus.Gatherer

	Version string
}

// Server is the bridge's HTTP observability listener.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	logger   Logger
	sessions SessionSource
	store    Store
	checks   map[string]HealthChecker
	gatherer prometheus.Gatherer
	version  string
	server   *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, session source)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Sessions == nil {
		return nil, fmt.Errorf("session source is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		sessions: deps.Sessions,
		store:    deps.Store,
		checks:   deps.Checks,
		gatherer: deps.Gatherer,
		version:  deps.Version,
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
