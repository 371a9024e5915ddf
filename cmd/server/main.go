/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the KPI tracking server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, optional YAML file, env)
  2. Set up structured logging
  3. Initialize SQLite store (optionally seed demo data)
  4. Create API handler with dependencies
  5. Start server with graceful shutdown

CONFIGURATION:
  KPITRACK_CONFIG          Path to a YAML config file
  KPITRACK_ADDR            Listen address (default :8080)
  KPITRACK_DB_PATH         SQLite path (":memory:" for in-memory)
  KPITRACK_CORS_ORIGINS    Comma-separated allowed origins
  KPITRACK_DEFAULT_REPEAT_POLICY  unlimited | per_day | per_week
  KPITRACK_LOG_LEVEL       debug | info | warn | error

FLAGS:
  -seed    Load demo users/KPIs into the database on startup

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tally/kpitrack/api"
	"github.com/tally/kpitrack/config"
	"github.com/tally/kpitrack/kpi"
	"github.com/tally/kpitrack/logging"
	"github.com/tally/kpitrack/store/sqlite"
)

func main() {
	seed := flag.Bool("seed", false, "load demo data on startup")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()

	if *seed {
		if err := store.SeedDemo(context.Background()); err != nil {
			slog.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		slog.Info("seeded demo data")
	}

	defaultPolicy, err := kpi.ParseRepeatPolicy(cfg.DefaultRepeatPolicy)
	if err != nil {
		slog.Error("invalid default repeat policy", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(store, defaultPolicy)
	router := api.NewRouter(handler, cfg.Origins())

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr, "db", cfg.DBPath, "default_policy", defaultPolicy)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
