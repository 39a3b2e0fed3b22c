/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the gym session ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load config (.env, environment, flags)
  2. Build the logger
  3. Open the SQLite store
  4. Load the repository (seeding an empty store if enabled)
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (GYM_PORT, default: 8080)
  -db          SQLite database path (GYM_DB, default: gym.db)
               Use ":memory:" for in-memory database
  -log-level   debug|info|warn|error (GYM_LOG_LEVEL, default: info)
  -log-format  console|json (GYM_LOG_FORMAT, default: console)
  -seed        install demo data into an empty store (GYM_SEED, default: true)

  GYM_CORS_ORIGINS is a comma-separated list of allowed origins.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  ./server -db="./data/gym.db"
  ./server -db=":memory:" -log-level=debug
  GYM_PORT=3000 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/gym-ledger/api"
	"github.com/warp/gym-ledger/config"
	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/logging"
	"github.com/warp/gym-ledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	opts := []gym.Option{gym.WithLogger(log.With().Str("component", "repository").Logger())}
	if cfg.Seed {
		opts = append(opts, gym.WithSeed(gym.DefaultSeed))
	}
	repo, err := gym.NewRepository(context.Background(), store, opts...)
	if err != nil {
		return err
	}

	handler := api.NewHandler(gym.NewEngine(repo, log), log)
	router := api.NewRouter(handler, cfg.CORSOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("db", cfg.DBPath).Msgf("server starting on http://localhost:%d/api", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}
