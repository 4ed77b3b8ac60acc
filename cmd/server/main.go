/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the loyalty engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags, load the TOML config if given
  2. Build the logger (stdout or rotating file)
  3. Initialize SQLite store
  4. Build the engine with Prometheus metrics as observer
  5. Seed the demo data set into an empty database (seed.demo)
  6. Configure HTTP router and start serving

COMMAND-LINE FLAGS:
  -config  TOML config file (optional)
  -port    HTTP server port, overrides server.port
  -db      SQLite database path, overrides db.path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -config=./loyalty.toml
  ./server -db=":memory:" -port=3000

SEE ALSO:
  - config/config.go: Configuration keys
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

	"github.com/warp/loyalty-engine/api"
	"github.com/warp/loyalty-engine/config"
	"github.com/warp/loyalty-engine/logging"
	"github.com/warp/loyalty-engine/loyalty"
	"github.com/warp/loyalty-engine/metrics"
	"github.com/warp/loyalty-engine/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "TOML config file")
	port := flag.String("port", "", "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("Failed to load config", slog.Any("error", err))
			os.Exit(1)
		}
		cfg = loaded
	}
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.DB.Path = *dbPath
	}

	logger, closer := logging.New(cfg.Log)
	defer closer.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server failed", slog.Any("error", err))
		closer.Close()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.Default()
	engine, err := loyalty.NewEngine(store,
		loyalty.WithLogger(logger),
		loyalty.WithObserver(m),
		loyalty.WithIdentityCacheSize(cfg.Cache.IdentitySize),
	)
	if err != nil {
		return err
	}

	if cfg.Seed.Demo {
		seeded, err := api.SeedIfEmpty(context.Background(), engine)
		if err != nil {
			return err
		}
		if seeded != nil {
			logger.Info("Demo data loaded", slog.Any("operators", seeded.Operators))
		}
	}

	handler := api.NewHandler(engine, store, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        m,
		Pinger:         store,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			slog.String("addr", "http://localhost:"+cfg.Server.Port),
			slog.String("db", cfg.DB.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
