package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs([]string{"--auth-token", "s3cret"})
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Server.AuthToken)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Server.LeaderboardSize)
	assert.Equal(t, "speedrun.db", cfg.Storage.Path)
	assert.Equal(t, "https://api.exaroton.com/v1", cfg.Hosting.URL)
	assert.False(t, cfg.Hosting.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.PollInterval)
	assert.Equal(t, 24, cfg.Orchestrator.MaxPolls)
	assert.Equal(t, []string{"world", "world_nether", "world_the_end"}, cfg.Orchestrator.WorldDirs)
	assert.Equal(t, "server.properties", cfg.Orchestrator.PropertiesPath)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.GeoIP.Path)
	assert.Equal(t, 60, cfg.RateLimit.HardLimitCount)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestParseArgsNamespaces(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-t", "x",
		"--hosting-token", "tok",
		"--hosting-server-id", "srv",
		"--orchestrator-max-polls", "3",
		"--orchestrator-world-dir", "w1",
		"--redis-url", "redis://localhost:6379/1",
		"--db-path", "/tmp/runs.db",
		"--allowed-origin", "https://example.com",
	})
	require.NoError(t, err)

	assert.True(t, cfg.Hosting.Enabled())
	assert.Equal(t, 3, cfg.Orchestrator.MaxPolls)
	assert.Equal(t, []string{"w1"}, cfg.Orchestrator.WorldDirs)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Redis.URL)
	assert.Equal(t, "/tmp/runs.db", cfg.Storage.Path)
	assert.Equal(t, []string{"https://example.com"}, cfg.Server.AllowedOrigins)
}

func TestParseArgsEnv(t *testing.T) {
	t.Setenv("SPEEDRUN_AUTH_TOKEN", "from-env")
	t.Setenv("SPEEDRUN_HOSTING_SERVER_ID", "env-server")

	cfg, err := parseArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Server.AuthToken)
	assert.Equal(t, "env-server", cfg.Hosting.ServerID)
}

func TestParseArgsRequiresAuthToken(t *testing.T) {
	_, err := parseArgs(nil)
	require.ErrorIs(t, err, ErrMissingAuthToken)
}
