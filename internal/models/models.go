// Package models defines the data structures used for API requests and database persistence.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation marks a request rejected before any state change.
var ErrValidation = errors.New("validation failed")

// DefaultGoal is used when a run is initialized without an explicit goal.
const DefaultGoal = "ENDER_DRAGON"

// RunType distinguishes solo attempts from team attempts.
type RunType string

// Run types.
const (
	RunTypeSolo RunType = "SOLO"
	RunTypeTeam RunType = "TEAM"
)

// RunStatus is the lifecycle label stored on a run.
type RunStatus string

// Run statuses.
const (
	StatusCreated  RunStatus = "CREATED"
	StatusRunning  RunStatus = "RUNNING"
	StatusPaused   RunStatus = "PAUSED"
	StatusFinished RunStatus = "FINISHED"
	StatusAborted  RunStatus = "ABORTED"
	StatusFailed   RunStatus = "FAILED"
)

// Action is a clock-relevant lifecycle event written to the time log.
type Action string

// Time log actions.
const (
	ActionStart  Action = "START"
	ActionResume Action = "RESUME"
	ActionPause  Action = "PAUSE"
	ActionEnd    Action = "END"
	ActionAbort  Action = "ABORT"
	ActionFail   Action = "FAIL"
)

// PlayerRole decides whether a player is attributed on leaderboards.
type PlayerRole string

// Player roles.
const (
	RoleRunner    PlayerRole = "RUNNER"
	RoleSpectator PlayerRole = "SPECTATOR"
)

// Run is one attempt at the challenge.
type Run struct {
	CreatedAt time.Time  `json:"created_at"`
	EndTime   *time.Time `json:"end_time"`
	Duration  *int64     `json:"duration"`
	ID        string     `json:"id"`
	Type      RunType    `json:"type"`
	Seed      string     `json:"seed"`
	Goal      string     `json:"goal"`
	TargetMob string     `json:"target_mob,omitempty"`
	Status    RunStatus  `json:"status"`
	Details   string     `json:"details,omitempty"`
	Hardcore  bool       `json:"hardcore"`
	SetSeed   bool       `json:"set_seed"`
}

// Player belongs to a single run.
type Player struct {
	RunID string     `json:"run_id"`
	Name  string     `json:"name"`
	Role  PlayerRole `json:"role"`
	ID    int64      `json:"id"`
}

// TimeLog is an append-only clock event.
type TimeLog struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Action    Action    `json:"action"`
}

// CheatLog is an append-only cheat suspicion record.
type CheatLog struct {
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	PlayerName string    `json:"player"`
	Details    string    `json:"details"`
}

// SolvedSeed records the first time any run finished on a seed.
type SolvedSeed struct {
	SolvedAt time.Time `json:"solved_at"`
	Seed     string    `json:"seed"`
}

// PlayerRequest is a player entry inside InitRunRequest.
type PlayerRequest struct {
	Name string     `json:"name"`
	Role PlayerRole `json:"role,omitempty"`
}

// InitRunRequest is the payload to register a new run.
type InitRunRequest struct {
	ID        string          `json:"id"`
	Type      RunType         `json:"type"`
	Seed      string          `json:"seed"`
	Goal      string          `json:"goal,omitempty"`
	TargetMob string          `json:"target_mob,omitempty"`
	Players   []PlayerRequest `json:"players"`
	Hardcore  bool            `json:"hardcore"`
	SetSeed   bool            `json:"set_seed"`
}

// Validate checks required fields and fills defaults (goal, player role).
func (r *InitRunRequest) Validate() error {
	r.ID = strings.TrimSpace(r.ID)
	r.Seed = strings.TrimSpace(r.Seed)

	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrValidation)
	}
	if r.Seed == "" {
		return fmt.Errorf("%w: seed is required", ErrValidation)
	}

	r.Type = RunType(strings.ToUpper(string(r.Type)))
	if r.Type != RunTypeSolo && r.Type != RunTypeTeam {
		return fmt.Errorf("%w: type must be SOLO or TEAM", ErrValidation)
	}

	if r.Goal == "" {
		r.Goal = DefaultGoal
	}

	if len(r.Players) == 0 {
		return fmt.Errorf("%w: at least one player is required", ErrValidation)
	}
	for i := range r.Players {
		p := &r.Players[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return fmt.Errorf("%w: player %d has no name", ErrValidation, i)
		}
		p.Role = PlayerRole(strings.ToUpper(string(p.Role)))
		if p.Role == "" {
			p.Role = RoleRunner
		}
		if p.Role != RoleRunner && p.Role != RoleSpectator {
			return fmt.Errorf("%w: player %q has unknown role %q", ErrValidation, p.Name, p.Role)
		}
	}

	return nil
}

// StateRequest carries a raw lifecycle action.
type StateRequest struct {
	Action Action `json:"action"`
}

// CheatRequest reports a suspected cheat.
type CheatRequest struct {
	Player  string `json:"player"`
	Details string `json:"details"`
}

// Validate checks required fields.
func (r *CheatRequest) Validate() error {
	r.Player = strings.TrimSpace(r.Player)
	if r.Player == "" {
		return fmt.Errorf("%w: player is required", ErrValidation)
	}

	return nil
}

// FinishRequest carries optional completion details.
type FinishRequest struct {
	Details string `json:"details"`
}

// RestartRequest optionally swaps the server to a fixed seed.
type RestartRequest struct {
	Seed string `json:"seed,omitempty"`
}

// Validate trims the seed and rejects line breaks, which would inject extra properties
// into server.properties.
func (r *RestartRequest) Validate() error {
	r.Seed = strings.TrimSpace(r.Seed)
	if strings.ContainsAny(r.Seed, "\r\n") {
		return fmt.Errorf("%w: seed must not contain line breaks", ErrValidation)
	}

	return nil
}
