package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/woozymasta/speedrun/internal/ledger"
	"github.com/woozymasta/speedrun/internal/models"
)

// testClock is a manually advanced clock injected into the repository.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRepo(t *testing.T) (*Repository, *testClock) {
	t.Helper()

	repo, err := New(filepath.Join(t.TempDir(), "speedrun.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	clock := &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	repo.now = clock.Now

	return repo, clock
}

func initRun(t *testing.T, repo *Repository, id, seed string, setSeed bool, players ...models.PlayerRequest) {
	t.Helper()

	if len(players) == 0 {
		players = []models.PlayerRequest{{Name: "Steve"}}
	}
	req := models.InitRunRequest{ID: id, Type: models.RunTypeSolo, Seed: seed, SetSeed: setSeed, Players: players}
	require.NoError(t, req.Validate())

	_, err := repo.CreateRun(context.Background(), req)
	require.NoError(t, err)
}

func TestCreateRun(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	req := models.InitRunRequest{
		ID:        "run-1",
		Type:      models.RunTypeTeam,
		Seed:      "8675309",
		TargetMob: "WITHER",
		Hardcore:  true,
		SetSeed:   true,
		Players: []models.PlayerRequest{
			{Name: "Steve"},
			{Name: "Alex", Role: models.RoleSpectator},
			{Name: "Herobrine", Role: models.RoleRunner},
		},
	}
	require.NoError(t, req.Validate())

	run, err := repo.CreateRun(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, run.Status)
	assert.Equal(t, models.DefaultGoal, run.Goal)
	assert.Equal(t, "WITHER", run.TargetMob)
	assert.True(t, run.Hardcore)
	assert.True(t, run.SetSeed)
	assert.Nil(t, run.EndTime)
	assert.Nil(t, run.Duration)

	_, err = repo.CreateRun(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicate)

	stats, err := repo.RunStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Steve", "Herobrine"}, stats.Runners)
}

func TestUpdateRunState(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "1", false)

	status, err := repo.UpdateRunState(ctx, "run-1", models.ActionStart)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, status)

	clock.Advance(2 * time.Second)
	status, err = repo.UpdateRunState(ctx, "run-1", models.ActionPause)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, status)

	logs, err := repo.TimeLogs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.ActionStart, logs[0].Action)
	assert.Equal(t, models.ActionPause, logs[1].Action)

	run, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaused, run.Status)
}

func TestUpdateRunStateRejectsUnknownAction(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "1", false)

	for _, action := range []models.Action{"JUMP", models.ActionEnd, ""} {
		_, err := repo.UpdateRunState(ctx, "run-1", action)
		assert.ErrorIs(t, err, ledger.ErrUnknownAction)
	}

	logs, err := repo.TimeLogs(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, logs)

	run, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, run.Status)
}

func TestUpdateRunStateUnknownRun(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.UpdateRunState(context.Background(), "ghost", models.ActionStart)
	assert.ErrorIs(t, err, ErrNotFound)

	logs, err := repo.TimeLogs(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestFinishRun(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "42", false)

	_, err := repo.UpdateRunState(ctx, "run-1", models.ActionStart)
	require.NoError(t, err)
	clock.Advance(61 * time.Minute)
	_, err = repo.UpdateRunState(ctx, "run-1", models.ActionPause)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	_, err = repo.UpdateRunState(ctx, "run-1", models.ActionResume)
	require.NoError(t, err)
	clock.Advance(1 * time.Second)

	stats, err := repo.FinishRun(ctx, "run-1", "killed the dragon")
	require.NoError(t, err)

	want := (61*time.Minute + time.Second).Milliseconds()
	assert.Equal(t, models.StatusFinished, stats.Run.Status)
	assert.Equal(t, want, stats.ElapsedMS)
	assert.Equal(t, "1h 1m 1s", stats.Formatted)
	require.NotNil(t, stats.Run.Duration)
	assert.Equal(t, want, *stats.Run.Duration)
	assert.Equal(t, "killed the dragon", stats.Run.Details)
	require.NotNil(t, stats.SolvedAt)
	assert.True(t, clock.now.Equal(*stats.SolvedAt))

	seed, err := repo.SeedSolved(ctx, "42")
	require.NoError(t, err)
	assert.True(t, seed.Solved)
}

func TestFinishRunTwiceIsStable(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "42", false)

	_, err := repo.UpdateRunState(ctx, "run-1", models.ActionStart)
	require.NoError(t, err)
	clock.Advance(5 * time.Second)

	first, err := repo.FinishRun(ctx, "run-1", "")
	require.NoError(t, err)

	clock.Advance(30 * time.Second)
	second, err := repo.FinishRun(ctx, "run-1", "")
	require.NoError(t, err)

	assert.Equal(t, int64(5000), first.ElapsedMS)
	assert.Equal(t, first.ElapsedMS, second.ElapsedMS)
	assert.Equal(t, *first.Run.Duration, *second.Run.Duration)

	logs, err := repo.TimeLogs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, models.ActionEnd, logs[2].Action)
}

func TestFinishRunMarksSeedOnce(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-a", "shared", true)
	initRun(t, repo, "run-b", "shared", true)

	firstSolve := clock.now
	_, err := repo.FinishRun(ctx, "run-a", "")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = repo.FinishRun(ctx, "run-b", "")
	require.NoError(t, err)

	var count int
	require.NoError(t, repo.db.QueryRow("SELECT COUNT(*) FROM solved_seeds WHERE seed = ?", "shared").Scan(&count))
	assert.Equal(t, 1, count)

	seed, err := repo.SeedSolved(ctx, "shared")
	require.NoError(t, err)
	require.NotNil(t, seed.SolvedAt)
	assert.True(t, firstSolve.Equal(*seed.SolvedAt))
}

func TestFinishRunUnknown(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.FinishRun(context.Background(), "ghost", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunStatsLiveClock(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "1", false)

	_, err := repo.UpdateRunState(ctx, "run-1", models.ActionStart)
	require.NoError(t, err)

	clock.Advance(5 * time.Second)
	stats, err := repo.RunStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), stats.ElapsedMS)
	assert.Nil(t, stats.SolvedAt)
	assert.Nil(t, stats.Run.Duration)

	clock.Advance(5 * time.Second)
	stats, err = repo.RunStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), stats.ElapsedMS)
}

func TestRunStatsUnknown(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.RunStats(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddCheat(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "1", false)

	require.NoError(t, repo.AddCheat(ctx, "run-1", "Steve", "x-ray texture pack"))
	require.NoError(t, repo.AddCheat(ctx, "run-1", "Steve", "fly"))
	assert.ErrorIs(t, repo.AddCheat(ctx, "ghost", "Steve", "fly"), ErrNotFound)

	stats, err := repo.RunStats(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CheatCount)
}

func TestSeedSolvedUnknown(t *testing.T) {
	repo, _ := newTestRepo(t)

	seed, err := repo.SeedSolved(context.Background(), "never")
	require.NoError(t, err)
	assert.False(t, seed.Solved)
	assert.Nil(t, seed.SolvedAt)
}

func TestRecomputeDurations(t *testing.T) {
	repo, clock := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "1", false)

	_, err := repo.UpdateRunState(ctx, "run-1", models.ActionStart)
	require.NoError(t, err)
	clock.Advance(3 * time.Second)
	_, err = repo.FinishRun(ctx, "run-1", "")
	require.NoError(t, err)

	_, err = repo.db.Exec("UPDATE runs SET duration = 1 WHERE id = ?", "run-1")
	require.NoError(t, err)

	clock.Advance(time.Hour)
	n, err := repo.RecomputeDurations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	run, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.NotNil(t, run.Duration)
	assert.Equal(t, int64(3000), *run.Duration)
}

func TestResetSchema(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	initRun(t, repo, "run-1", "1", false)
	_, err := repo.FinishRun(ctx, "run-1", "")
	require.NoError(t, err)

	require.NoError(t, repo.ResetSchema(ctx))

	_, err = repo.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	seed, err := repo.SeedSolved(ctx, "1")
	require.NoError(t, err)
	assert.False(t, seed.Solved)

	initRun(t, repo, "run-1", "1", false)
}
