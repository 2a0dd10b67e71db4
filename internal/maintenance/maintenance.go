// Package maintenance provides one-shot database tasks run from the command line.
package maintenance

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/internal/config"
	"github.com/woozymasta/speedrun/internal/models"
	"github.com/woozymasta/speedrun/internal/storage"
)

// Mirror is the leaderboard mirror rebuilt after maintenance.
type Mirror interface {
	Record(ctx context.Context, runID string, setSeed bool, durationMS int64) error
	Reset(ctx context.Context) error
}

const workers = 4

// Run checks if any maintenance flags are set and executes the corresponding tasks.
// mirror may be nil. Returns true if a maintenance task was executed (indicating the program should exit).
func Run(ctx context.Context, cfg *config.Config, store *storage.Repository, mirror Mirror) bool {
	switch {
	case cfg.Storage.Reset:
		log.Warn().Str("path", cfg.Storage.Path).Msg("Dropping and recreating all tables...")
		if err := store.ResetSchema(ctx); err != nil {
			log.Error().Err(err).Msg("Schema reset failed")
			return true
		}
		if mirror != nil {
			if err := mirror.Reset(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to clear leaderboard mirror")
			}
		}
		log.Info().Msg("Schema reset finished")

	case cfg.Storage.Recompute:
		log.Info().Msg("Recomputing durations of finished runs...")
		count, err := store.RecomputeDurations(ctx)
		if err != nil {
			log.Error().Err(err).Msg("Failed to recompute durations")
			return true
		}
		log.Info().Int("runs", count).Msg("Durations recomputed")

		if mirror != nil {
			if err := Resync(ctx, store, mirror); err != nil {
				log.Error().Err(err).Msg("Failed to rebuild leaderboard mirror")
			}
		}

	default:
		return false
	}

	return true
}

// Resync clears the mirror and writes every finished run from both boards into it.
func Resync(ctx context.Context, store *storage.Repository, mirror Mirror) error {
	if err := mirror.Reset(ctx); err != nil {
		return err
	}

	var entries []entry
	for _, setSeed := range []bool{false, true} {
		// A negative limit lifts the LIMIT clause in SQLite.
		board, err := store.Leaderboard(ctx, setSeed, -1)
		if err != nil {
			return err
		}
		for _, e := range board {
			entries = append(entries, entry{LeaderboardEntry: e, setSeed: setSeed})
		}
	}

	if len(entries) == 0 {
		log.Info().Msg("No finished runs to mirror")
		return nil
	}

	log.Info().Int("count", len(entries)).Msgf("Mirroring leaderboard with %d workers...", workers)
	runWorkerPool(ctx, entries, mirror)
	log.Info().Msg("Leaderboard mirror rebuilt")

	return nil
}

type entry struct {
	models.LeaderboardEntry
	setSeed bool
}

func runWorkerPool(ctx context.Context, entries []entry, mirror Mirror) {
	jobs := make(chan entry, len(entries))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				if err := mirror.Record(ctx, e.RunID, e.setSeed, e.DurationMS); err != nil {
					log.Error().Err(err).Str("run_id", e.RunID).Msg("Failed to mirror run")
				}
			}
		}()
	}

	for _, e := range entries {
		jobs <- e
	}
	close(jobs)

	wg.Wait()
}
