package models

import "time"

// RunStats is the per-run summary returned by the stats lookup and by finish.
type RunStats struct {
	SolvedAt   *time.Time `json:"solved_at"`
	Run        Run        `json:"run"`
	Formatted  string     `json:"formatted"`
	Runners    []string   `json:"runners"`
	ElapsedMS  int64      `json:"elapsed_ms"`
	CheatCount int        `json:"cheat_count"`
}

// SeedStatus answers whether a seed has been solved.
type SeedStatus struct {
	SolvedAt *time.Time `json:"solved_at"`
	Seed     string     `json:"seed"`
	Solved   bool       `json:"solved"`
}

// Totals are the headline counters of the public stats page.
type Totals struct {
	Runs        int `json:"runs"`
	Finished    int `json:"finished"`
	SolvedSeeds int `json:"solved_seeds"`
	CheatLogs   int `json:"cheat_reports"`
}

// LeaderboardEntry is a finished run ranked by duration.
type LeaderboardEntry struct {
	EndTime    time.Time `json:"end_time"`
	RunID      string    `json:"run_id"`
	Type       RunType   `json:"type"`
	Seed       string    `json:"seed"`
	Formatted  string    `json:"formatted"`
	Runners    []string  `json:"runners"`
	Rank       int       `json:"rank"`
	DurationMS int64     `json:"duration_ms"`
	Hardcore   bool      `json:"hardcore"`
}

// RecentFinish is a recently finished run.
type RecentFinish struct {
	EndTime     time.Time `json:"end_time"`
	RunID       string    `json:"run_id"`
	Seed        string    `json:"seed"`
	Formatted   string    `json:"formatted"`
	FinishedAgo string    `json:"finished_ago"`
	Runners     []string  `json:"runners"`
	DurationMS  int64     `json:"duration_ms"`
	SetSeed     bool      `json:"set_seed"`
}

// ActiveRun is the latest run whose clock may still be ticking.
type ActiveRun struct {
	Run       Run      `json:"run"`
	Formatted string   `json:"formatted"`
	Runners   []string `json:"runners"`
	ElapsedMS int64    `json:"elapsed_ms"`
}

// PublicStats aggregates everything shown on the public stats page.
type PublicStats struct {
	Active         *ActiveRun         `json:"active_run"`
	ServerStatus   string             `json:"server_status"`
	RandomSeed     []LeaderboardEntry `json:"leaderboard_random"`
	SetSeed        []LeaderboardEntry `json:"leaderboard_set_seed"`
	RecentFinishes []RecentFinish     `json:"recent_finishes"`
	Totals         Totals             `json:"totals"`
}
