/*
main.go - Application entry point

PURPOSE:
  Starts the front-desk engine HTTP server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env, YAML file, FRONTDESK_* env)
  2. Apply command-line flags on top
  3. Open the SQLite store (runs migrations)
  4. Build the engine, handler, metrics and router
  5. Optionally seed a demo scenario
  6. Start the occupancy sampler and the HTTP server

COMMAND-LINE FLAGS:
  -config  YAML config file (default: frontdesk.yaml, optional)
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database
  -seed    Demo scenario to load into an empty database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (server.shutdown_timeout)
  3. Stop the sampler and close the database
  4. Exit

EXAMPLES:
  ./server -db="./data/frontdesk.db"
  ./server -db=":memory:" -seed=small-hotel
  FRONTDESK_LOG_FORMAT=json ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/frontdesk-engine/api"
	"github.com/warp/frontdesk-engine/config"
	"github.com/warp/frontdesk-engine/engine"
	"github.com/warp/frontdesk-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "frontdesk.yaml", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	seed := flag.String("seed", "", "demo scenario to load into an empty database")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.Default().NewLogger(os.Stderr).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	log := cfg.NewLogger(os.Stderr)

	if err := run(cfg, *seed, log); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, seed string, log *slog.Logger) error {
	store, err := sqlite.New(cfg.Database.Path, sqlite.WithBusyTimeout(cfg.Database.BusyTimeout))
	if err != nil {
		return err
	}
	defer store.Close()

	eng := engine.New(store, cfg.EngineOptions(log)...)
	metrics := api.NewMetrics()
	handler := api.NewHandler(eng, metrics, log)

	if seed != "" {
		err := api.LoadDemo(context.Background(), eng, seed, engine.DateOf(time.Now()))
		switch {
		case errors.Is(err, api.ErrNotEmpty):
			log.Warn("skipping demo seed", "scenario", seed, "reason", err)
		case err != nil:
			return err
		default:
			log.Info("demo scenario loaded", "scenario", seed)
		}
	}

	sampler := api.NewOccupancySampler(eng, metrics, log)
	sampler.Start()
	defer sampler.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(handler, api.RouterOptions{CORSOrigins: cfg.Server.CORSOrigins}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", server.Addr, "db", cfg.Database.Path, "release_policy", cfg.ReleasePolicy().String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
