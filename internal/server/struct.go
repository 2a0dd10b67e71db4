package server

import (
	"context"
	"sync"
	"time"

	"github.com/woozymasta/speedrun/internal/geoip"
	"github.com/woozymasta/speedrun/internal/leaderboard"
	"github.com/woozymasta/speedrun/internal/metrics"
	"github.com/woozymasta/speedrun/internal/storage"
)

// StatusReader reports the numeric status of the hosted game server.
type StatusReader interface {
	Status(ctx context.Context) (int, error)
}

// Orchestrator accepts background server sequences and returns their job ids.
type Orchestrator interface {
	SubmitReset() string
	SubmitReseed(seed string) string
	SubmitRestart() string
}

// Mirror is an optional secondary leaderboard store.
type Mirror interface {
	Record(ctx context.Context, runID string, setSeed bool, durationMS int64) error
	Top(ctx context.Context, setSeed bool, limit int64) ([]leaderboard.Entry, error)
	Reset(ctx context.Context) error
}

// Deps bundles the collaborators of the HTTP server.
// Hosting, Orchestrator, Mirror and GeoIP are optional and must be left nil when not configured.
type Deps struct {
	Storage      *storage.Repository
	Hosting      StatusReader
	Orchestrator Orchestrator
	Mirror       Mirror
	GeoIP        *geoip.Provider
	Metrics      *metrics.Metrics
}

// Server holds the dependencies, configuration, and runtime state required
// to handle HTTP requests and background leaderboard mirroring.
type Server struct {
	// storage is the run ledger.
	storage *storage.Repository

	// hosting answers server status lookups. Nil when the hosting API is not configured.
	hosting StatusReader

	// orchestrator runs reset, reseed and restart sequences in the background.
	// Nil when the hosting API is not configured.
	orchestrator Orchestrator

	// mirror receives finished run durations. Nil when Redis is not configured.
	mirror Mirror

	// geoip resolves client addresses to country codes for request logs.
	// It can be nil if the GeoIP database is not initialized.
	geoip *geoip.Provider

	metrics *metrics.Metrics

	// allowedOrigins is a set of hashed CORS origins (using xxhash).
	allowedOrigins map[uint64]struct{}

	// queue passes finished runs from HTTP handlers to the mirror workers.
	queue chan mirrorJob

	// shutdown is closed to stop background goroutines during a graceful shutdown.
	shutdown chan struct{}

	// authToken is the shared secret expected in the X-Api-Key header of /api requests.
	authToken string

	// wg waits for the mirror workers to drain the queue.
	wg sync.WaitGroup

	// maxBody specifies the maximum allowed size (in bytes) for incoming HTTP request bodies.
	maxBody int64

	// hardLimitCount is the maximum number of requests allowed per IP address
	// within the hardLimitWin duration.
	hardLimitCount int

	// hardLimitWin is the time window duration for the hard rate limiter.
	hardLimitWin time.Duration

	leaderboardSize int
	recentLimit     int
	mirrorWorkers   int

	// anyOrigin is set when "*" is among the allowed origins.
	anyOrigin bool

	// trustProxy indicates whether the server should trust headers like X-Forwarded-For
	// or CF-Connecting-IP when determining the client's real IP address.
	trustProxy bool
}

// mirrorJob is one finished run waiting to be written to the leaderboard mirror.
type mirrorJob struct {
	RunID      string
	DurationMS int64
	SetSeed    bool
}
