package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/woozymasta/speedrun/internal/ledger"
	"github.com/woozymasta/speedrun/internal/models"
)

// PublicStats collects totals, both leaderboards (top boardSize each), the latest
// recent finishes and the active run. ServerStatus is left for the caller to fill.
func (r *Repository) PublicStats(ctx context.Context, boardSize, recent int) (*models.PublicStats, error) {
	stats := &models.PublicStats{}

	if err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM runs),
			(SELECT COUNT(*) FROM runs WHERE status = ?),
			(SELECT COUNT(*) FROM solved_seeds),
			(SELECT COUNT(*) FROM cheat_logs)`,
		models.StatusFinished,
	).Scan(&stats.Totals.Runs, &stats.Totals.Finished, &stats.Totals.SolvedSeeds, &stats.Totals.CheatLogs); err != nil {
		return nil, fmt.Errorf("totals: %w", err)
	}

	var err error
	if stats.RandomSeed, err = r.Leaderboard(ctx, false, boardSize); err != nil {
		return nil, err
	}
	if stats.SetSeed, err = r.Leaderboard(ctx, true, boardSize); err != nil {
		return nil, err
	}
	if stats.RecentFinishes, err = r.recentFinishes(ctx, recent); err != nil {
		return nil, err
	}
	if stats.Active, err = r.activeRun(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}

// Leaderboard returns the fastest finished runs for either set-seed or random-seed play.
func (r *Repository) Leaderboard(ctx context.Context, setSeed bool, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, seed, hardcore, duration, end_time
		FROM runs
		WHERE status = ? AND set_seed = ? AND duration IS NOT NULL
		ORDER BY duration ASC, end_time ASC
		LIMIT ?`,
		models.StatusFinished, setSeed, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var (
			e       models.LeaderboardEntry
			endTime sql.NullTime
		)
		if err := rows.Scan(&e.RunID, &e.Type, &e.Seed, &e.Hardcore, &e.DurationMS, &endTime); err != nil {
			_ = rows.Close()
			return nil, err
		}
		e.Rank = len(entries) + 1
		e.EndTime = endTime.Time
		e.Formatted = ledger.FormatDuration(e.DurationMS)
		entries = append(entries, e)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].Runners, err = r.runners(ctx, entries[i].RunID); err != nil {
			return nil, err
		}
	}

	return entries, nil
}

func (r *Repository) recentFinishes(ctx context.Context, limit int) ([]models.RecentFinish, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, seed, set_seed, COALESCE(duration, 0), end_time
		FROM runs
		WHERE status = ? AND end_time IS NOT NULL
		ORDER BY end_time DESC
		LIMIT ?`,
		models.StatusFinished, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent finishes: %w", err)
	}

	now := r.now()
	finishes := []models.RecentFinish{}
	for rows.Next() {
		var f models.RecentFinish
		if err := rows.Scan(&f.RunID, &f.Seed, &f.SetSeed, &f.DurationMS, &f.EndTime); err != nil {
			_ = rows.Close()
			return nil, err
		}
		f.Formatted = ledger.FormatDuration(f.DurationMS)
		f.FinishedAgo = humanize.RelTime(f.EndTime, now, "ago", "from now")
		finishes = append(finishes, f)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range finishes {
		if finishes[i].Runners, err = r.runners(ctx, finishes[i].RunID); err != nil {
			return nil, err
		}
	}

	return finishes, nil
}

// activeRun returns the most recently created RUNNING or PAUSED run, or nil.
func (r *Repository) activeRun(ctx context.Context) (*models.ActiveRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE status IN (?, ?)
		ORDER BY created_at DESC
		LIMIT 1`,
		models.StatusRunning, models.StatusPaused,
	)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active run: %w", err)
	}

	logs, err := r.TimeLogs(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	runners, err := r.runners(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	elapsed := ledger.Elapsed(logs, r.now())

	return &models.ActiveRun{
		Run:       *run,
		ElapsedMS: elapsed,
		Formatted: ledger.FormatDuration(elapsed),
		Runners:   runners,
	}, nil
}
