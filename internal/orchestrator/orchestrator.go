// Package orchestrator drives the remote game server through reset, reseed and restart sequences.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/speedrun/internal/hosting"
	"github.com/woozymasta/speedrun/internal/metrics"
)

// ErrOfflineTimeout is returned when the server never reports OFFLINE within the poll budget.
var ErrOfflineTimeout = errors.New("server did not go offline in time")

// Controller is the remote surface the orchestrator needs. *hosting.Client implements it.
type Controller interface {
	Status(ctx context.Context) (int, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	ReadFile(ctx context.Context, path string) (string, error)
	WriteFile(ctx context.Context, path, content string) error
	DeleteFile(ctx context.Context, path string) error
}

// Config tunes polling and the remote file layout.
type Config struct {
	PropertiesPath string        `long:"properties-path" env:"PROPERTIES_PATH" description:"Path of server.properties on the server disk" default:"server.properties"`
	WorldDirs      []string      `long:"world-dir" env:"WORLD_DIRS" env-delim:"," description:"World directories deleted on reset" default:"world" default:"world_nether" default:"world_the_end"`
	PollInterval   time.Duration `long:"poll-interval" env:"POLL_INTERVAL" description:"Delay between status polls while waiting for OFFLINE" default:"5s"`
	MaxPolls       int           `long:"max-polls" env:"MAX_POLLS" description:"Status polls before giving up on OFFLINE" default:"24"`
}

// Phase is a step of a running orchestration.
type Phase string

// Orchestration phases.
const (
	PhaseIdle           Phase = "idle"
	PhaseStopping       Phase = "stopping"
	PhaseWaitingOffline Phase = "waiting_offline"
	PhaseMutating       Phase = "mutating"
	PhaseDeleting       Phase = "deleting"
	PhaseStarting       Phase = "starting"
	PhaseAborted        Phase = "aborted"
)

// Orchestration kinds, used as the metrics label.
const (
	KindReset   = "reset"
	KindReseed  = "reseed"
	KindRestart = "restart"
)

// Orchestrator runs sequences against one Controller.
// Overlapping sequences are not serialized.
type Orchestrator struct {
	ctrl    Controller
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
	cfg     Config

	wg       sync.WaitGroup
	mu       sync.Mutex
	inFlight int
}

// New creates an orchestrator. m may be nil.
func New(ctrl Controller, cfg Config, m *metrics.Metrics) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = 24
	}
	if cfg.PropertiesPath == "" {
		cfg.PropertiesPath = "server.properties"
	}

	return &Orchestrator{
		ctrl:    ctrl,
		cfg:     cfg,
		metrics: m,
		sleep:   sleepCtx,
	}
}

// Reset stops the server, waits for OFFLINE, deletes the worlds and starts it again.
func (o *Orchestrator) Reset(ctx context.Context) error {
	return o.run(ctx, "", KindReset, "")
}

// Reseed is Reset with the level seed rewritten before the worlds are deleted.
func (o *Orchestrator) Reseed(ctx context.Context, seed string) error {
	return o.run(ctx, "", KindReseed, seed)
}

// Restart issues a single in-place restart.
func (o *Orchestrator) Restart(ctx context.Context) error {
	if err := o.ctrl.Restart(ctx); err != nil {
		return fmt.Errorf("restart: %w", err)
	}

	return nil
}

// SubmitReset starts Reset in the background and returns its job id.
func (o *Orchestrator) SubmitReset() string {
	return o.submit(KindReset, "")
}

// SubmitReseed starts Reseed in the background and returns its job id.
func (o *Orchestrator) SubmitReseed(seed string) string {
	return o.submit(KindReseed, seed)
}

// SubmitRestart starts Restart in the background and returns its job id.
func (o *Orchestrator) SubmitRestart() string {
	return o.submit(KindRestart, "")
}

// Wait blocks until every submitted job has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// InFlight returns the number of jobs currently running.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.inFlight
}

func (o *Orchestrator) submit(kind, seed string) string {
	job := uuid.NewString()

	if running := o.track(1); running > 1 {
		log.Warn().Str("job", job).Str("kind", kind).Int("in_flight", running).
			Msg("orchestration overlaps with another running job")
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.track(-1)

		started := time.Now()
		ctx := context.Background()

		var err error
		switch kind {
		case KindRestart:
			err = o.Restart(ctx)
		default:
			err = o.run(ctx, job, kind, seed)
		}

		if o.metrics != nil {
			o.metrics.ObserveOrchestration(kind, err == nil)
		}
		if err != nil {
			log.Error().Err(err).Str("job", job).Str("kind", kind).Msg("orchestration failed")
			return
		}

		log.Info().Str("job", job).Str("kind", kind).Dur("took", time.Since(started)).Msg("orchestration completed")
	}()

	log.Info().Str("job", job).Str("kind", kind).Msg("orchestration accepted")
	return job
}

func (o *Orchestrator) track(delta int) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.inFlight += delta
	if o.metrics != nil {
		o.metrics.InFlight.Set(float64(o.inFlight))
	}

	return o.inFlight
}

func (o *Orchestrator) run(ctx context.Context, job, kind, seed string) (err error) {
	phase := func(p Phase) {
		log.Debug().Str("job", job).Str("kind", kind).Str("phase", string(p)).Msg("orchestration phase")
	}
	defer func() {
		if err != nil {
			phase(PhaseAborted)
			return
		}
		phase(PhaseIdle)
	}()

	phase(PhaseStopping)
	if err := o.ctrl.Stop(ctx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}

	phase(PhaseWaitingOffline)
	if err := o.waitOffline(ctx); err != nil {
		return err
	}

	if kind == KindReseed {
		phase(PhaseMutating)
		if err := o.writeSeed(ctx, seed); err != nil {
			return err
		}
	}

	phase(PhaseDeleting)
	for _, dir := range o.cfg.WorldDirs {
		if err := o.ctrl.DeleteFile(ctx, dir); err != nil {
			log.Warn().Err(err).Str("job", job).Str("dir", dir).Msg("failed to delete world directory")
		}
	}

	phase(PhaseStarting)
	if err := o.ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	return nil
}

// waitOffline polls status up to MaxPolls times, sleeping PollInterval before each poll.
// Status errors count as a non-OFFLINE answer.
func (o *Orchestrator) waitOffline(ctx context.Context) error {
	for attempt := 1; attempt <= o.cfg.MaxPolls; attempt++ {
		if err := o.sleep(ctx, o.cfg.PollInterval); err != nil {
			return err
		}

		code, err := o.ctrl.Status(ctx)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("status poll failed")
			continue
		}
		if code == hosting.StatusOffline {
			return nil
		}
		log.Debug().Int("attempt", attempt).Str("status", hosting.StatusLabel(code)).Msg("server not offline yet")
	}

	return fmt.Errorf("%w after %d polls", ErrOfflineTimeout, o.cfg.MaxPolls)
}

func (o *Orchestrator) writeSeed(ctx context.Context, seed string) error {
	props, err := o.ctrl.ReadFile(ctx, o.cfg.PropertiesPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", path.Base(o.cfg.PropertiesPath), err)
	}

	if err := o.ctrl.WriteFile(ctx, o.cfg.PropertiesPath, ApplySeed(props, seed)); err != nil {
		return fmt.Errorf("write %s: %w", path.Base(o.cfg.PropertiesPath), err)
	}

	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
