package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/internal/hosting"
	"github.com/woozymasta/speedrun/internal/models"
)

// handleServerStatus performs a foreground status lookup. Remote failures surface as 502.
func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	if s.hosting == nil {
		writeError(w, r, errHostingDisabled)
		return
	}

	code, err := s.hosting.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"code": code, "status": hosting.StatusLabel(code)})
}

// handleReset accepts a world reset and returns before it runs.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		writeError(w, r, errHostingDisabled)
		return
	}

	job := s.orchestrator.SubmitReset()
	writeJSON(w, http.StatusAccepted, map[string]string{"job": job, "kind": "reset"})
}

// handleRestart accepts a restart, or a reseed when a seed is given.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		writeError(w, r, errHostingDisabled)
		return
	}

	var req models.RestartRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	seed := req.Seed
	if seed == "" {
		job := s.orchestrator.SubmitRestart()
		writeJSON(w, http.StatusAccepted, map[string]string{"job": job, "kind": "restart"})
		return
	}

	job := s.orchestrator.SubmitReseed(seed)
	writeJSON(w, http.StatusAccepted, map[string]string{"job": job, "kind": "reseed", "seed": seed})
}

// handleDBInit drops and recreates the schema and clears the leaderboard mirror.
func (s *Server) handleDBInit(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.ResetSchema(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	if s.mirror != nil {
		if err := s.mirror.Reset(r.Context()); err != nil {
			log.Error().Err(err).Msg("Failed to clear leaderboard mirror")
		}
	}

	log.Warn().Str("ip", GetRealIP(r, s.trustProxy)).Msg("Database schema reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
