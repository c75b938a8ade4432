// Package main is the entry point for the dog boarding sync server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dog-boarding/backend/internal/api"
	"github.com/dog-boarding/backend/internal/app"
	"github.com/dog-boarding/backend/internal/config"
	"github.com/dog-boarding/backend/internal/logging"
	"github.com/dog-boarding/backend/internal/syncjob"
	"github.com/dog-boarding/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

// syncDrainTimeout bounds how long shutdown waits for an in-flight sync.
const syncDrainTimeout = 2 * time.Minute

func main() {
	// Parse command-line flags; set flags override the config file and env.
	addr := flag.String("addr", "", "HTTP server address (overrides HTTP_ADDR)")
	dataDir := flag.String("data", "", "Data directory for the SQLite database (overrides DATA_DIR)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		target := *addr
		if target == "" {
			target = config.Default().Server.Addr
		}
		if err := runHealthCheck(target); err != nil {
			fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := run(*addr, *dataDir); err != nil {
		log := logging.Logger()
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(addrFlag, dataFlag string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}
	if dataFlag != "" {
		cfg.Storage.DataDir = dataFlag
	}

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.Logger()

	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}
	log.Info().
		Str("version", version).
		Str("storage", cfg.Storage.Driver).
		Str("site", cfg.Site.BaseURL).
		Bool("credentials", cfg.HasSiteCredentials()).
		Msg("Starting dog boarding sync server")

	backend, err := app.OpenBackend(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer backend.Close()

	// Initialize WebSocket hub
	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Close()

	syncService := app.NewSyncService(cfg, backend, websocket.NewEventBroadcaster(hub), log)

	var scheduler *syncjob.Scheduler
	if cfg.Sync.Enabled {
		var health syncjob.CronHealthStore
		if backend.CronHealth != nil {
			health = backend.CronHealth
		}
		scheduler = syncjob.NewScheduler(syncService, health, cfg.Sync.Schedule, log)
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	services := api.Services{
		Config:    cfg,
		Sync:      syncService,
		Running:   syncService.Running,
		Scheduler: scheduler,
		Hub:       hub,
		Logger:    log,
	}
	if backend.SyncLogs != nil {
		services.SyncLogs = backend.SyncLogs
	}
	if backend.Settings != nil {
		services.Settings = backend.Settings
	}
	if backend.CronHealth != nil {
		services.CronHealth = backend.CronHealth
	}
	if backend.DB != nil {
		services.DB = backend.DB
	}

	// Create HTTP server. POST /api/sync holds its response for the whole run.
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(services),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Server listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	shutdownErr := server.Shutdown(ctx)

	// A sync started over HTTP outlives its request; let it record its
	// outcome before the database closes.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), syncDrainTimeout)
	defer cancelDrain()
	if syncService.Running() {
		log.Info().Msg("Waiting for the running sync to finish...")
	}
	if err := syncService.WaitIdle(drainCtx); err != nil {
		log.Warn().Dur("waited", syncDrainTimeout).Msg("Sync still running at shutdown, closing anyway")
	}

	if shutdownErr != nil {
		return fmt.Errorf("server shutdown: %w", shutdownErr)
	}

	log.Info().Msg("Server stopped")
	return nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
