// Package fake generates synthetic runs for development and demos.
package fake

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/internal/models"
	"github.com/woozymasta/speedrun/internal/storage"
)

var (
	players = []string{"Steve", "Alex", "Notch", "Jeb", "Dinnerbone", "Grumm", "Technoblade", "Dream", "Illumina", "Couriway"}
	goals   = []string{models.DefaultGoal, models.DefaultGoal, models.DefaultGoal, "WITHER", "ELDER_GUARDIAN"}
	mobs    = []string{"BLAZE", "ENDERMAN", "PIGLIN", "GHAST"}
)

// GenerateData replays count randomized runs through the repository on a simulated clock
// spread over the last 30 days. The repository clock is restored to wall time afterwards.
func GenerateData(ctx context.Context, store *storage.Repository, count int) {
	now := time.Now().UTC().Add(-30 * 24 * time.Hour)
	store.SetClock(func() time.Time { return now })
	defer store.SetClock(func() time.Time { return time.Now().UTC() })

	advance := func(d time.Duration) { now = now.Add(d) }

	for i := 0; i < count; i++ {
		req := randomRun(i)
		if _, err := store.CreateRun(ctx, req); err != nil {
			log.Warn().Err(err).Str("run_id", req.ID).Msg("Failed to generate fake run")
			continue
		}

		if err := playRun(ctx, store, req, advance); err != nil {
			log.Warn().Err(err).Str("run_id", req.ID).Msg("Failed to play fake run")
		}

		// Gap before the next attempt
		advance(time.Duration(rand.Intn(180)+5) * time.Minute)
	}

	log.Info().Int("count", count).Msg("Fake runs generated")
}

func randomRun(i int) models.InitRunRequest {
	req := models.InitRunRequest{
		ID:       fmt.Sprintf("fake-%d-%04d", time.Now().Unix(), i),
		Type:     models.RunTypeSolo,
		Seed:     strconv.FormatInt(rand.Int63()-rand.Int63(), 10),
		Goal:     goals[rand.Intn(len(goals))],
		Hardcore: rand.Float32() < 0.3,
		SetSeed:  rand.Float32() < 0.25,
	}
	if req.Goal != models.DefaultGoal && rand.Float32() < 0.5 {
		req.TargetMob = mobs[rand.Intn(len(mobs))]
	}

	team := 1
	if rand.Float32() < 0.4 {
		req.Type = models.RunTypeTeam
		team = rand.Intn(3) + 2
	}
	for _, idx := range rand.Perm(len(players))[:team] {
		req.Players = append(req.Players, models.PlayerRequest{Name: players[idx], Role: models.RoleRunner})
	}
	if rand.Float32() < 0.2 {
		req.Players = append(req.Players, models.PlayerRequest{Name: "Spectator", Role: models.RoleSpectator})
	}

	return req
}

// playRun walks a run through start, optional pauses and cheats, and one outcome.
func playRun(ctx context.Context, store *storage.Repository, req models.InitRunRequest, advance func(time.Duration)) error {
	if _, err := store.UpdateRunState(ctx, req.ID, models.ActionStart); err != nil {
		return err
	}

	for pauses := rand.Intn(3); pauses > 0; pauses-- {
		advance(time.Duration(rand.Intn(15)+1) * time.Minute)
		if _, err := store.UpdateRunState(ctx, req.ID, models.ActionPause); err != nil {
			return err
		}
		advance(time.Duration(rand.Intn(10)+1) * time.Minute)
		if _, err := store.UpdateRunState(ctx, req.ID, models.ActionResume); err != nil {
			return err
		}
	}

	if rand.Float32() < 0.1 {
		if err := store.AddCheat(ctx, req.ID, req.Players[0].Name, "suspicious movement"); err != nil {
			return err
		}
	}

	advance(time.Duration(rand.Intn(40)+8)*time.Minute + time.Duration(rand.Intn(60))*time.Second)

	switch roll := rand.Float32(); {
	case roll < 0.7:
		_, err := store.FinishRun(ctx, req.ID, "")
		return err
	case roll < 0.85:
		_, err := store.UpdateRunState(ctx, req.ID, models.ActionFail)
		return err
	default:
		_, err := store.UpdateRunState(ctx, req.ID, models.ActionAbort)
		return err
	}
}
