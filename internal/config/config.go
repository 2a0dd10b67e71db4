// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/speedrun/internal/hosting"
	"github.com/woozymasta/speedrun/internal/leaderboard"
	"github.com/woozymasta/speedrun/internal/logger"
	"github.com/woozymasta/speedrun/internal/orchestrator"
	"github.com/woozymasta/speedrun/internal/vars"
)

// ErrMissingAuthToken is returned when no shared API secret was configured.
var ErrMissingAuthToken = errors.New("required flag `-t, --auth-token' or environment variable `SPEEDRUN_AUTH_TOKEN' was not specified")

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server       Server              `group:"Server Options" env-namespace:"SPEEDRUN"`
	Storage      Storage             `group:"Storage Options" namespace:"db" env-namespace:"SPEEDRUN_DB"`
	Hosting      hosting.Config      `group:"Hosting Options" namespace:"hosting" env-namespace:"SPEEDRUN_HOSTING"`
	Orchestrator orchestrator.Config `group:"Orchestrator Options" namespace:"orchestrator" env-namespace:"SPEEDRUN_ORCHESTRATOR"`
	Redis        leaderboard.Config  `group:"Redis Options" namespace:"redis" env-namespace:"SPEEDRUN_REDIS"`
	GeoIP        GeoIP               `group:"GeoIP Options" namespace:"geoip" env-namespace:"SPEEDRUN_GEOIP"`
	RateLimit    RateLimit           `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"SPEEDRUN_RATE_LIMIT"`
	Logger       logger.Config       `group:"Logger Options" namespace:"log" env-namespace:"SPEEDRUN_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address         string   `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken       string   `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Shared secret expected in the X-Api-Key header"`
	AllowedOrigins  []string `short:"o" long:"allowed-origin" env:"ALLOWED_ORIGINS" description:"CORS allowed origins, * allows any" default:"*" env-delim:","`
	MaxBodySize     int64    `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"65536"`
	TrustProxy      bool     `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	LeaderboardSize int      `long:"leaderboard-size" env:"LEADERBOARD_SIZE" description:"Entries per leaderboard in public stats" default:"10"`
	RecentLimit     int      `long:"recent-limit" env:"RECENT_LIMIT" description:"Recent finishes listed in public stats" default:"5"`
	MirrorWorkers   int      `long:"mirror-workers" env:"MIRROR_WORKERS" description:"Workers writing finished runs to the Redis mirror" default:"2"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"speedrun.db"`
	Reset         bool   `long:"reset" description:"Drop and recreate all tables, then exit"`
	Recompute     bool   `long:"recompute" description:"Recompute durations of finished runs from their time logs, then exit"`
	GenerateCount int    `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration. An empty path disables lookups.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"60"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return cfg
}

// parseArgs parses args without exiting, so it can be exercised from tests.
func parseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	if cfg.Server.AuthToken == "" {
		return nil, ErrMissingAuthToken
	}

	return &cfg, nil
}
