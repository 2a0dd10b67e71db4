// main is the entry point of the speedrun tracker.
// It initializes the configuration, logger, database, optional integrations, and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/internal/config"
	"github.com/woozymasta/speedrun/internal/fake"
	"github.com/woozymasta/speedrun/internal/geoip"
	"github.com/woozymasta/speedrun/internal/hosting"
	"github.com/woozymasta/speedrun/internal/leaderboard"
	"github.com/woozymasta/speedrun/internal/logger"
	"github.com/woozymasta/speedrun/internal/maintenance"
	"github.com/woozymasta/speedrun/internal/metrics"
	"github.com/woozymasta/speedrun/internal/orchestrator"
	"github.com/woozymasta/speedrun/internal/server"
	"github.com/woozymasta/speedrun/internal/storage"
	"github.com/woozymasta/speedrun/internal/vars"
)

func main() {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)
	log.Info().Str("version", vars.Version).Msg("Starting speedrun service...")

	ctx := context.Background()
	m := metrics.New()
	deps := server.Deps{Metrics: m}

	// GeoIP
	if cfg.GeoIP.Path != "" {
		log.Info().Msg("Checking GeoIP database...")
		if err := geoip.EnsureDB(ctx, cfg.GeoIP.Path, cfg.GeoIP.URL, cfg.GeoIP.Interval); err != nil {
			log.Error().Err(err).Msg("Failed to download GeoIP database")
		}

		geoProvider, err := geoip.Open(cfg.GeoIP.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		} else {
			deps.GeoIP = geoProvider
			defer func() {
				if err := geoProvider.Close(); err != nil {
					log.Error().Err(err).Msg("Error closing GeoIP provider")
				}
			}()
		}
	}

	// Database
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	deps.Storage = store

	// Leaderboard mirror
	var mirror *leaderboard.Mirror
	if cfg.Redis.URL != "" {
		mirror, err = leaderboard.New(cfg.Redis)
		if err != nil {
			log.Error().Err(err).Msg("Failed to connect to Redis, leaderboard mirror disabled")
			mirror = nil
		} else {
			deps.Mirror = mirror
			defer func() { _ = mirror.Close() }()
		}
	}

	// data generation or database maintenance
	if cfg.Storage.GenerateCount > 0 {
		fake.GenerateData(ctx, store, cfg.Storage.GenerateCount)
		closeStore(store)
		return
	}
	var maintMirror maintenance.Mirror
	if mirror != nil {
		maintMirror = mirror
	}
	if maintenance.Run(ctx, cfg, store, maintMirror) {
		closeStore(store)
		return
	}

	// Hosting API and orchestrator
	var orch *orchestrator.Orchestrator
	if cfg.Hosting.Enabled() {
		client := hosting.New(cfg.Hosting, m)
		orch = orchestrator.New(client, cfg.Orchestrator, m)
		deps.Hosting = client
		deps.Orchestrator = orch
		log.Info().Str("server_id", cfg.Hosting.ServerID).Msg("Hosting API control enabled")
	} else {
		log.Warn().Msg("Hosting API not configured, server control disabled")
	}

	// Init server
	srvHandler := server.New(cfg, deps)

	// Background queue
	srvHandler.StartWorkers()

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srvHandler.Run(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Shut down HTTP
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop workers (wait queue done)
	srvHandler.StopWorkers()

	// In-flight orchestrations get a bounded grace period
	if orch != nil {
		waitOrchestrations(orch, time.Duration(cfg.Orchestrator.MaxPolls+2)*cfg.Orchestrator.PollInterval)
	}

	closeStore(store)
	log.Info().Msg("Server exited")
}

func waitOrchestrations(orch *orchestrator.Orchestrator, timeout time.Duration) {
	if n := orch.InFlight(); n > 0 {
		log.Info().Int("in_flight", n).Dur("timeout", timeout).Msg("Waiting for orchestrations...")
	}

	done := make(chan struct{})
	go func() {
		orch.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Int("in_flight", orch.InFlight()).Msg("Orchestrations still running, exiting anyway")
	}
}

func closeStore(store *storage.Repository) {
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Error closing database")
	}
}
