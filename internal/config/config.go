// Package config loads and validates configuration at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/pipeline"
)

// Config holds all runtime configuration for the pipeline binaries.
type Config struct {
	HTTPPort    string
	GRPCPort    string
	DatabaseURL string
	RedisURL    string

	LogLevel  string
	LogFormat string // "json" or "console"

	CalendarCredentialsFile string // empty: booking reports every system as misconfigured
	CalendarTimeout         time.Duration

	BookingHorizonDays int
	BookingLockTTL     time.Duration
	BookingLockWait    time.Duration

	JanitorSchedule   string // cron spec, e.g. "@every 5m"
	JanitorStaleAfter time.Duration

	Catalog pipeline.Catalog
}

var defaults = map[string]any{
	"PIPELINE_HTTP_PORT":   "8082",
	"PIPELINE_GRPC_PORT":   "9082",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"CALENDAR_TIMEOUT":     "10s",
	"BOOKING_HORIZON_DAYS": 14,
	"BOOKING_LOCK_TTL":     "30s",
	"BOOKING_LOCK_WAIT":    "5s",
	"JANITOR_SCHEDULE":     "@every 5m",
	"JANITOR_STALE_AFTER":  "10m",
}

// Load reads the environment (and a .env file when present) for the
// long-running binaries. DATABASE_URL and REDIS_URL are required.
func Load() (*Config, error) {
	return load(true)
}

// LoadForCLI is Load without the Redis requirement.
func LoadForCLI() (*Config, error) {
	return load(false)
}

func load(requireRedis bool) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	dbURL := v.GetString("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := v.GetString("REDIS_URL")
	if requireRedis && redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	cfg := &Config{
		HTTPPort:                v.GetString("PIPELINE_HTTP_PORT"),
		GRPCPort:                v.GetString("PIPELINE_GRPC_PORT"),
		DatabaseURL:             dbURL,
		RedisURL:                redisURL,
		LogLevel:                v.GetString("LOG_LEVEL"),
		LogFormat:               v.GetString("LOG_FORMAT"),
		CalendarCredentialsFile: v.GetString("CALENDAR_CREDENTIALS_FILE"),
		CalendarTimeout:         v.GetDuration("CALENDAR_TIMEOUT"),
		BookingHorizonDays:      v.GetInt("BOOKING_HORIZON_DAYS"),
		BookingLockTTL:          v.GetDuration("BOOKING_LOCK_TTL"),
		BookingLockWait:         v.GetDuration("BOOKING_LOCK_WAIT"),
		JanitorSchedule:         v.GetString("JANITOR_SCHEDULE"),
		JanitorStaleAfter:       v.GetDuration("JANITOR_STALE_AFTER"),
		Catalog:                 pipeline.DefaultCatalog(),
	}

	if path := v.GetString("CONFIG_FILE"); path != "" {
		catalog, err := LoadCatalog(path)
		if err != nil {
			return nil, err
		}
		cfg.Catalog = catalog
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	if c.CalendarTimeout <= 0 {
		errs = append(errs, fmt.Errorf("CALENDAR_TIMEOUT must be a positive duration"))
	}
	if c.BookingHorizonDays < 1 {
		errs = append(errs, fmt.Errorf("BOOKING_HORIZON_DAYS must be a positive integer, got %d", c.BookingHorizonDays))
	}
	if c.BookingLockTTL <= 0 || c.BookingLockWait <= 0 {
		errs = append(errs, fmt.Errorf("BOOKING_LOCK_TTL and BOOKING_LOCK_WAIT must be positive durations"))
	}
	if c.JanitorStaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("JANITOR_STALE_AFTER must be a positive duration"))
	}
	return errors.Join(errs...)
}

// ─── Team catalog ────────────────────────────────────────────────────────────

type teamEntry struct {
	Name    string   `mapstructure:"name"`
	Systems []string `mapstructure:"systems"`
	Policy  string   `mapstructure:"policy"`
}

// LoadCatalog reads the `teams:` list of a yaml config file.
func LoadCatalog(path string) (pipeline.Catalog, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var entries []teamEntry
	if err := v.UnmarshalKey("teams", &entries); err != nil {
		return nil, fmt.Errorf("decode teams in %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: no teams defined", path)
	}

	catalog := make(pipeline.Catalog, len(entries))
	for _, e := range entries {
		if e.Name == "" || len(e.Systems) == 0 {
			return nil, fmt.Errorf("%s: every team needs a name and at least one system", path)
		}
		if _, dup := catalog[e.Name]; dup {
			return nil, fmt.Errorf("%s: team %q defined twice", path, e.Name)
		}
		policy, err := pipeline.ParseTrackPolicy(e.Policy)
		if err != nil {
			return nil, fmt.Errorf("%s: team %q: %w", path, e.Name, err)
		}
		catalog[e.Name] = pipeline.Team{Name: e.Name, Systems: e.Systems, Policy: policy}
	}
	return catalog, nil
}
