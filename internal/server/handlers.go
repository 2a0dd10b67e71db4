package server

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/assets"
	"github.com/woozymasta/speedrun/internal/hosting"
	"github.com/woozymasta/speedrun/internal/metrics"
	"github.com/woozymasta/speedrun/internal/vars"
)

// Server status labels used when the hosting API cannot answer.
const (
	statusUnknown = "UNKNOWN"
	statusError   = "ERROR"
)

// handleIndex serves the static landing page.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	content, err := assets.ReadFile("index.html")
	if err != nil {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(content)
}

// handleHealth reports liveness together with build info.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		log.Error().Err(err).Msg("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "build": vars.Ver()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": vars.Ver()})
}

// handlePublicStats returns the aggregate stats page with the live server status.
func (s *Server) handlePublicStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.PublicStats(r.Context(), s.leaderboardSize, s.recentLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats.ServerStatus = s.serverStatusLabel(r.Context())
	writeJSON(w, http.StatusOK, stats)
}

// serverStatusLabel never fails: an unconfigured API yields UNKNOWN and a failed call ERROR.
func (s *Server) serverStatusLabel(ctx context.Context) string {
	if s.hosting == nil {
		return statusUnknown
	}

	code, err := s.hosting.Status(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Server status lookup failed")
		return statusError
	}

	return hosting.StatusLabel(code)
}

// handleSeed reports whether a seed has been solved.
func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	status, err := s.storage.SeedSolved(r.Context(), r.PathValue("seed"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// handleLeaderboard returns one board, from the Redis mirror when configured.
// Mirror entries carry only run id, duration and rank; an empty or failing mirror
// falls back to the database, whose entries add runners, seed and formatted time.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board := r.PathValue("board")
	if board != metrics.Board(false) && board != metrics.Board(true) {
		writeError(w, r, errUnknownBoard)
		return
	}
	setSeed := board == metrics.Board(true)

	if s.mirror != nil {
		entries, err := s.mirror.Top(r.Context(), setSeed, int64(s.leaderboardSize))
		switch {
		case err != nil:
			log.Warn().Err(err).Str("board", board).Msg("Leaderboard mirror unavailable, reading database")
		case len(entries) > 0:
			writeJSON(w, http.StatusOK, map[string]any{"board": board, "source": "redis", "entries": entries})
			return
		}
	}

	entries, err := s.storage.Leaderboard(r.Context(), setSeed, s.leaderboardSize)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"board": board, "source": "database", "entries": entries})
}
