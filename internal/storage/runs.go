package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/woozymasta/speedrun/internal/ledger"
	"github.com/woozymasta/speedrun/internal/models"
)

const runColumns = `id, type, seed, goal, target_mob, hardcore, set_seed, status,
	created_at, end_time, duration, details`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run       models.Run
		targetMob sql.NullString
		endTime   sql.NullTime
		duration  sql.NullInt64
		details   sql.NullString
	)

	if err := row.Scan(
		&run.ID, &run.Type, &run.Seed, &run.Goal, &targetMob, &run.Hardcore, &run.SetSeed, &run.Status,
		&run.CreatedAt, &endTime, &duration, &details,
	); err != nil {
		return nil, err
	}

	run.TargetMob = targetMob.String
	run.Details = details.String
	if endTime.Valid {
		t := endTime.Time
		run.EndTime = &t
	}
	if duration.Valid {
		d := duration.Int64
		run.Duration = &d
	}

	return &run, nil
}

// CreateRun registers a new run in CREATED state together with its players.
// The request must already be validated.
func (r *Repository) CreateRun(ctx context.Context, req models.InitRunRequest) (*models.Run, error) {
	now := r.now()

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, type, seed, goal, target_mob, hardcore, set_seed, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		req.ID, req.Type, req.Seed, req.Goal, nullString(req.TargetMob), req.Hardcore, req.SetSeed,
		models.StatusCreated, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n == 0 {
		return nil, ErrDuplicate
	}

	for _, p := range req.Players {
		if _, err := r.db.ExecContext(ctx,
			"INSERT INTO players (run_id, name, role) VALUES (?, ?, ?)", req.ID, p.Name, p.Role,
		); err != nil {
			return nil, fmt.Errorf("insert player %q: %w", p.Name, err)
		}
	}

	return r.GetRun(ctx, req.ID)
}

// GetRun returns a run by id or ErrNotFound.
func (r *Repository) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

// UpdateRunState applies a lifecycle action: the run status is set from the action
// and the raw action is appended to the time log. Unknown actions write nothing.
func (r *Repository) UpdateRunState(ctx context.Context, id string, action models.Action) (models.RunStatus, error) {
	status, err := ledger.StatusFor(action)
	if err != nil {
		return "", err
	}

	res, err := r.db.ExecContext(ctx, "UPDATE runs SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrNotFound
	}

	if err := r.appendTimeLog(ctx, id, action, r.now()); err != nil {
		return "", err
	}

	return status, nil
}

// AddCheat appends a cheat suspicion record for a run.
func (r *Repository) AddCheat(ctx context.Context, runID, player, details string) error {
	if err := r.ensureRun(ctx, runID); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO cheat_logs (run_id, player_name, details, ts) VALUES (?, ?, ?, ?)",
		runID, player, details, r.now(),
	)
	if err != nil {
		return fmt.Errorf("insert cheat log: %w", err)
	}

	return nil
}

// FinishRun marks a run FINISHED, stamps its end time, appends END, marks the seed solved
// if it was not already and stores the duration replayed from the time log.
//
// The steps are independent statements. A failure part-way leaves earlier steps applied;
// calling FinishRun again is safe because a repeated END is ignored by the fold and the
// solved-seed insert keeps the first record.
func (r *Repository) FinishRun(ctx context.Context, id, details string) (*models.RunStats, error) {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	now := r.now()

	if _, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, end_time = ?, details = COALESCE(?, details)
		WHERE id = ?`,
		models.StatusFinished, now, nullString(details), id,
	); err != nil {
		return nil, fmt.Errorf("mark finished: %w", err)
	}

	if err := r.appendTimeLog(ctx, id, models.ActionEnd, now); err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO solved_seeds (seed, solved_at) VALUES (?, ?) ON CONFLICT(seed) DO NOTHING",
		run.Seed, now,
	); err != nil {
		return nil, fmt.Errorf("mark seed solved: %w", err)
	}

	logs, err := r.TimeLogs(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := r.db.ExecContext(ctx,
		"UPDATE runs SET duration = ? WHERE id = ?", ledger.Elapsed(logs, now), id,
	); err != nil {
		return nil, fmt.Errorf("store duration: %w", err)
	}

	return r.RunStats(ctx, id)
}

// RunStats summarizes a run: metadata, replayed elapsed time, runner names,
// cheat count and the solved timestamp (the run end time).
func (r *Repository) RunStats(ctx context.Context, id string) (*models.RunStats, error) {
	run, err := r.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	logs, err := r.TimeLogs(ctx, id)
	if err != nil {
		return nil, err
	}

	runners, err := r.runners(ctx, id)
	if err != nil {
		return nil, err
	}

	var cheats int
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM cheat_logs WHERE run_id = ?", id,
	).Scan(&cheats); err != nil {
		return nil, fmt.Errorf("count cheat logs: %w", err)
	}

	elapsed := ledger.Elapsed(logs, r.now())

	return &models.RunStats{
		Run:        *run,
		ElapsedMS:  elapsed,
		Formatted:  ledger.FormatDuration(elapsed),
		Runners:    runners,
		CheatCount: cheats,
		SolvedAt:   run.EndTime,
	}, nil
}

// SeedSolved reports whether any run has finished on the seed.
func (r *Repository) SeedSolved(ctx context.Context, seed string) (*models.SeedStatus, error) {
	status := &models.SeedStatus{Seed: seed}

	var solvedAt time.Time
	err := r.db.QueryRowContext(ctx, "SELECT solved_at FROM solved_seeds WHERE seed = ?", seed).Scan(&solvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return status, nil
	}
	if err != nil {
		return nil, err
	}

	status.Solved = true
	status.SolvedAt = &solvedAt

	return status, nil
}

// TimeLogs returns the time log of a run in replay order.
func (r *Repository) TimeLogs(ctx context.Context, runID string) ([]models.TimeLog, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT run_id, action, ts FROM time_logs WHERE run_id = ? ORDER BY ts, id", runID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var logs []models.TimeLog
	for rows.Next() {
		var l models.TimeLog
		if err := rows.Scan(&l.RunID, &l.Action, &l.Timestamp); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

// RecomputeDurations replays the time log of every finished run and stores the result.
// Open logs are bounded by the run end time. It returns the number of runs updated.
func (r *Repository) RecomputeDurations(ctx context.Context) (int, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE status = ?", models.StatusFinished,
	)
	if err != nil {
		return 0, err
	}

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			_ = rows.Close()
			return 0, err
		}
		runs = append(runs, run)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for i, run := range runs {
		logs, err := r.TimeLogs(ctx, run.ID)
		if err != nil {
			return i, err
		}

		bound := r.now()
		if run.EndTime != nil {
			bound = *run.EndTime
		}

		if _, err := r.db.ExecContext(ctx,
			"UPDATE runs SET duration = ? WHERE id = ?", ledger.Elapsed(logs, bound), run.ID,
		); err != nil {
			return i, fmt.Errorf("store duration for %s: %w", run.ID, err)
		}
	}

	return len(runs), nil
}

func (r *Repository) appendTimeLog(ctx context.Context, runID string, action models.Action, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO time_logs (run_id, action, ts) VALUES (?, ?, ?)", runID, action, at,
	)
	if err != nil {
		return fmt.Errorf("append time log: %w", err)
	}

	return nil
}

func (r *Repository) ensureRun(ctx context.Context, id string) error {
	var exists int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	return err
}

// runners returns RUNNER player names of a run in insertion order.
func (r *Repository) runners(ctx context.Context, runID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT name FROM players WHERE run_id = ? AND role = ? ORDER BY id", runID, models.RoleRunner,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
