// emberbridge - Ember mug to MQTT bridge
//
// This is the main entry point for the emberbridge daemon. It connects
// Ember travel mugs over Bluetooth LE to an MQTT broker, publishes Home
// Assistant autodiscovery descriptors and retained state documents, and
// coordinates exclusive device ownership with peer instances over
// retained claim topics so a mug within range of several hosts is only
// ever driven by one of them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hearthware/emberbridge/internal/api"
	"github.com/hearthware/emberbridge/internal/ble"
	"github.com/hearthware/emberbridge/internal/bridge"
	"github.com/hearthware/emberbridge/internal/discovery"
	"github.com/hearthware/emberbridge/internal/infrastructure/config"
	"github.com/hearthware/emberbridge/internal/infrastructure/database"
	"github.com/hearthware/emberbridge/internal/infrastructure/influxdb"
	"github.com/hearthware/emberbridge/internal/infrastructure/logging"
	"github.com/hearthware/emberbridge/internal/infrastructure/mqtt"
	"github.com/hearthware/emberbridge/internal/ownership"
	"github.com/hearthware/emberbridge/internal/pairing"
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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting emberbridge",
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
	log.Info("configuration loaded", "path", configPath, "instance", cfg.Instance.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open the paired-device store
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Connect to MQTT broker
	bus, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := bus.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	bus.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional telemetry)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		if influxClient != nil {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// Ownership coordination over retained claim topics
	coordinator := ownership.NewCoordinator(
		cfg.Instance.ID, cfg.LeaseTTL(), cfg.ConflictBackoffMax(), bus, log)

	// Re-assert claims after broker reconnects; a broker restart wipes
	// nothing (claims are retained) but peers may have claimed devices
	// while this instance was partitioned.
	bus.SetOnConnect(func() {
		log.Info("MQTT reconnected, re-announcing claims")
		coordinator.Announce()
	})
	bus.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	pairingMgr := pairing.NewManager(bus, coordinator, db, cfg.CandidateTimeout(), log)
	discoveryPub := discovery.NewPublisher(bus, cfg.Discovery.Prefix, log)

	// Prometheus registry shared by the bridge and the API listener
	registry := prometheus.NewRegistry()
	metrics := bridge.NewMetrics(registry)

	br := bridge.New(cfg, bridge.Deps{
		Bus:         bus,
		Transport:   ble.NewAdapter(),
		Coordinator: coordinator,
		Pairing:     pairingMgr,
		Discovery:   discoveryPub,
		Store:       db,
		Influx:      influxClient,
		Metrics:     metrics,
		Logger:      log,
	})
	if err := br.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		br.Stop()
	}()

	// HTTP observability listener (optional)
	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     bus,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}

		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log,
			Sessions: br,
			Store:    db,
			Checks:   checks,
			Gatherer: registry,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, bus, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (if enabled)
	// 2. Bridge (ends sessions, releases leases, retracts discovery)
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("emberbridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses EMBERBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("EMBERBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - bus: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, bus *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := bus.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
