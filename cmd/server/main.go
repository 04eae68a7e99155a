/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the star incentive engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML file, STARS_* env)
  2. Initialize logging
  3. Initialize SQLite store and the scoring catalog
  4. Create service, scheduler and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (default: $STARS_CONFIG)
  -addr    Override server.addr
  -db      Override database.path. Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the period close scheduler
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/stars.db"

  # Run with a config file and JSON logs
  STARS_LOG__FORMAT=json ./server -config=stars.yaml

SEE ALSO:
  - config/loader.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/star-engine/api"
	"github.com/warp/star-engine/config"
	"github.com/warp/star-engine/factory"
	"github.com/warp/star-engine/incentive"
	"github.com/warp/star-engine/logger"
	"github.com/warp/star-engine/metrics"
	"github.com/warp/star-engine/service"
	"github.com/warp/star-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Get().Fatal().Err(err).Msg("failed to load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger.Init(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "star-engine"})
	log := logger.Get()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("failed to initialize database")
	}
	defer store.Close()

	catalog, err := loadCatalog(cfg.Engine.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Engine.CatalogPath).Msg("failed to load catalog")
	}

	m := metrics.NewManager()
	svc := service.New(store, catalog, service.OptionsFromConfig(cfg),
		service.WithLogger(logger.Named("service")),
		service.WithMetrics(m),
	)

	scheduler := api.NewPeriodCloseScheduler(svc, m)
	scheduler.Enabled = cfg.Scheduler.Enabled
	scheduler.CheckInterval = cfg.Scheduler.Interval
	scheduler.Start()

	handler := api.NewHandler(svc, scheduler)
	router := api.NewRouter(handler, api.RouterOptions{
		CORSOrigins: cfg.Server.CORSOrigins,
		Metrics:     m.Handler(),
		Scenarios:   cfg.Server.Scenarios,
	})

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Int("rules", len(catalog.Rules())).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func loadCatalog(path string) (*incentive.Catalog, error) {
	if path == "" {
		return factory.DefaultCatalog(), nil
	}
	return factory.NewCatalogFactory().LoadFile(path)
}
