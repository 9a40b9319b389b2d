// Greenhouse Core - autonomous irrigation control.
//
// This is the main entry point for the greenhouse controller. It wires
// the infrastructure (config, logging, SQLite, Redis, InfluxDB), connects
// the IoT gateway, provisions the feeds, and hands the pump controller,
// scheduler, and decision loop to the orchestrator.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/verdant-labs/greenhouse-core/migrations"

	"github.com/verdant-labs/greenhouse-core/internal/decision"
	"github.com/verdant-labs/greenhouse-core/internal/gateway"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/cache"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/config"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/database"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/logging"
	"github.com/verdant-labs/greenhouse-core/internal/infrastructure/telemetry"
	"github.com/verdant-labs/greenhouse-core/internal/orchestrator"
	"github.com/verdant-labs/greenhouse-core/internal/pump"
	"github.com/verdant-labs/greenhouse-core/internal/scheduler"
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

// provisionTimeout bounds startup feed provisioning.
const provisionTimeout = 2 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Greenhouse Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations
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

	// Connect the fast cache
	cacheClient, err := cache.Connect(cfg.Cache)
	if err != nil {
		return fmt.Errorf("connecting to cache: %w", err)
	}
	defer func() {
		log.Info("closing cache connection")
		if closeErr := cacheClient.Close(); closeErr != nil {
			log.Error("error closing cache", "error", closeErr)
		}
	}()
	log.Info("cache connected", "addr", cfg.Cache.Addr)

	// Connect the IoT gateway
	gw, err := gateway.Connect(cfg.Gateway, log.With("component", "gateway"))
	if err != nil {
		return fmt.Errorf("connecting gateway: %w", err)
	}
	defer func() {
		log.Info("closing gateway connection")
		if closeErr := gw.Close(); closeErr != nil {
			log.Error("error closing gateway", "error", closeErr)
		}
	}()
	log.Info("gateway connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Gateway.MQTT.Host, cfg.Gateway.MQTT.Port),
		"account", cfg.Gateway.Account,
	)

	if err := provisionFeeds(ctx, gw, cfg.Gateway.Feeds); err != nil {
		return fmt.Errorf("provisioning feeds: %w", err)
	}
	log.Info("feeds provisioned", "group", cfg.Gateway.Feeds.Group)

	// Connect telemetry (optional)
	var pumpTelemetry pump.Telemetry
	var loopTelemetry decision.Telemetry
	if cfg.Telemetry.Enabled {
		influx, err := telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting telemetry: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		pumpTelemetry = influx
		loopTelemetry = influx
		log.Info("telemetry connected", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	// Pump controller
	pumpCtrl, err := pump.NewController(ctx, cfg.Pump, cfg.Gateway.Feeds.Pump,
		gw, pump.NewRepository(db.DB), cacheClient, pumpTelemetry,
		log.With("component", "pump"))
	if err != nil {
		return fmt.Errorf("initialising pump controller: %w", err)
	}

	// Scheduler
	sched, err := scheduler.NewService(ctx, cfg.Scheduler, pumpCtrl,
		scheduler.NewRepository(db.DB), cacheClient,
		log.With("component", "scheduler"))
	if err != nil {
		return fmt.Errorf("initialising scheduler: %w", err)
	}

	// Decision loop
	loop, err := decision.NewLoop(ctx, cfg.Decision, cfg.Gateway.Feeds, pumpCtrl,
		gw, decision.NewRepository(db.DB), cacheClient, loopTelemetry,
		log.With("component", "decision"))
	if err != nil {
		return fmt.Errorf("initialising decision loop: %w", err)
	}

	// Orchestrator owns the loop lifecycle
	orch := orchestrator.New(pumpCtrl, sched, loop, log.With("component", "orchestrator"))
	for _, status := range orch.Start(ctx) {
		if !status.OK {
			log.Warn("component not started", "component", status.Component, "detail", status.Detail)
		} else {
			log.Info("component started", "component", status.Component)
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Stop with a fresh context: the signal context is already cancelled.
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	for _, status := range orch.Stop(stopCtx) {
		if !status.OK {
			log.Error("component did not stop cleanly",
				"component", status.Component, "detail", status.Detail)
		}
	}

	log.Info("Greenhouse Core stopped")
	return nil
}

// provisionFeeds ensures the pump control feed and the sensor feeds exist
// on the gateway before anything publishes to them.
func provisionFeeds(ctx context.Context, gw *gateway.Client, feeds config.GatewayFeedsConfig) error {
	ctx, cancel := context.WithTimeout(ctx, provisionTimeout)
	defer cancel()

	bindings := []struct {
		key, name, description string
	}{
		{feeds.Pump, "Water Pump", "Irrigation pump control (1=on, 0=off)"},
		{feeds.Moisture, "Soil Moisture", "Soil moisture percentage"},
		{feeds.Temperature, "Temperature", "Greenhouse air temperature"},
		{feeds.Humidity, "Humidity", "Greenhouse relative humidity"},
	}

	for _, b := range bindings {
		if b.key == "" {
			continue
		}
		if _, err := gw.EnsureFeed(ctx, b.key, b.name, b.description, feeds.Group); err != nil {
			return fmt.Errorf("feed %q: %w", b.key, err)
		}
	}
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GREENHOUSE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GREENHOUSE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
