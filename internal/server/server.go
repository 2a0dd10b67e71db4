// Package server implements the HTTP server, middleware, and request handlers for the application.
package server

import (
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/woozymasta/speedrun/internal/config"
	"github.com/woozymasta/speedrun/internal/metrics"
)

// New creates a new Server instance with the provided collaborators and configuration.
func New(cfg *config.Config, deps Deps) *Server {
	origins := make(map[uint64]struct{})
	anyOrigin := false
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" {
			anyOrigin = true
			continue
		}
		origins[xxhash.Sum64String(origin)] = struct{}{}
	}

	m := deps.Metrics
	if m == nil {
		m = metrics.New()
	}

	workers := cfg.Server.MirrorWorkers
	if workers <= 0 {
		workers = 1
	}

	return &Server{
		storage:         deps.Storage,
		hosting:         deps.Hosting,
		orchestrator:    deps.Orchestrator,
		mirror:          deps.Mirror,
		geoip:           deps.GeoIP,
		metrics:         m,
		allowedOrigins:  origins,
		anyOrigin:       anyOrigin,
		authToken:       cfg.Server.AuthToken,
		maxBody:         cfg.Server.MaxBodySize,
		trustProxy:      cfg.Server.TrustProxy,
		hardLimitCount:  cfg.RateLimit.HardLimitCount,
		hardLimitWin:    cfg.RateLimit.HardLimitWin,
		leaderboardSize: cfg.Server.LeaderboardSize,
		recentLimit:     cfg.Server.RecentLimit,
		mirrorWorkers:   workers,

		queue:    make(chan mirrorJob, 256),
		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the leaderboard mirror workers. It does nothing without a mirror.
func (s *Server) StartWorkers() {
	if s.mirror == nil {
		return
	}

	for i := 0; i < s.mirrorWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// StopWorkers stops background goroutines and waits for queued mirror writes.
func (s *Server) StopWorkers() {
	close(s.shutdown)
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/runs", s.handleInitRun)
	api.HandleFunc("POST /api/runs/{id}/state", s.handleRunState)
	api.HandleFunc("POST /api/runs/{id}/cheats", s.handleCheat)
	api.HandleFunc("POST /api/runs/{id}/finish", s.handleFinish)
	api.HandleFunc("GET /api/runs/{id}/stats", s.handleRunStats)
	api.HandleFunc("GET /api/seeds/{seed}", s.handleSeed)
	api.HandleFunc("GET /api/stats", s.handlePublicStats)
	api.HandleFunc("GET /api/leaderboard/{board}", s.handleLeaderboard)
	api.HandleFunc("GET /api/server/status", s.handleServerStatus)
	api.HandleFunc("POST /api/server/reset", s.handleReset)
	api.HandleFunc("POST /api/server/restart", s.handleRestart)
	api.HandleFunc("POST /api/db/init", s.handleDBInit)

	mux := http.NewServeMux()
	mux.Handle("/api/", s.RateLimitMiddleware(s.APIKeyMiddleware(api)))
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	return s.LoggingMiddleware(s.CORSMiddleware(mux))
}
