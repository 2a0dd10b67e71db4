package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/internal/metrics"
	"github.com/woozymasta/speedrun/internal/models"
)

// handleInitRun registers a new run with its players.
func (s *Server) handleInitRun(w http.ResponseWriter, r *http.Request) {
	var req models.InitRunRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	run, err := s.storage.CreateRun(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.RunsCreated.Inc()
	log.Info().
		Str("run_id", run.ID).
		Str("type", string(run.Type)).
		Str("seed", run.Seed).
		Int("players", len(req.Players)).
		Msg("Run registered")

	writeJSON(w, http.StatusCreated, run)
}

// handleRunState applies a lifecycle action to a run.
func (s *Server) handleRunState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.StateRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	status, err := s.storage.UpdateRunState(r.Context(), id, req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.StateChanges.WithLabelValues(string(req.Action)).Inc()
	log.Debug().Str("run_id", id).Str("action", string(req.Action)).Msg("Run state changed")

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

// handleCheat records a cheat suspicion against a run.
func (s *Server) handleCheat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.CheatRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.storage.AddCheat(r.Context(), id, req.Player, req.Details); err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.CheatReports.Inc()
	log.Warn().Str("run_id", id).Str("player", req.Player).Str("details", req.Details).Msg("Cheat reported")

	writeJSON(w, http.StatusCreated, map[string]string{"status": "recorded"})
}

// handleFinish finishes a run and returns its final stats.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req models.FinishRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := s.storage.FinishRun(r.Context(), id, req.Details)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.metrics.RunsFinished.WithLabelValues(metrics.Board(stats.Run.SetSeed)).Inc()
	log.Info().
		Str("run_id", id).
		Str("seed", stats.Run.Seed).
		Str("time", stats.Formatted).
		Msg("Run finished")

	s.enqueueMirror(mirrorJob{RunID: id, SetSeed: stats.Run.SetSeed, DurationMS: stats.ElapsedMS})

	writeJSON(w, http.StatusOK, stats)
}

// handleRunStats returns the summary of one run.
func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.storage.RunStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// enqueueMirror hands a finished run to the mirror workers without blocking the request.
func (s *Server) enqueueMirror(job mirrorJob) {
	if s.mirror == nil {
		return
	}

	select {
	case <-s.shutdown:
		log.Warn().Str("run_id", job.RunID).Msg("Mirror workers stopped, leaderboard update dropped")
		return
	default:
	}

	select {
	case s.queue <- job:
	default:
		log.Warn().Str("run_id", job.RunID).Msg("Mirror queue full, leaderboard update dropped")
	}
}

// worker is a background goroutine that writes queued runs to the leaderboard mirror.
// The queue is never closed; on shutdown the worker drains what is buffered and exits.
func (s *Server) worker() {
	defer s.wg.Done()

	for {
		select {
		case job := <-s.queue:
			s.processJob(job)
		case <-s.shutdown:
			for {
				select {
				case job := <-s.queue:
					s.processJob(job)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) processJob(job mirrorJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.mirror.Record(ctx, job.RunID, job.SetSeed, job.DurationMS); err != nil {
		log.Error().Err(err).Str("run_id", job.RunID).Msg("Failed to mirror leaderboard entry")
		return
	}

	log.Debug().Str("run_id", job.RunID).Int64("duration_ms", job.DurationMS).Msg("Leaderboard entry mirrored")
}
