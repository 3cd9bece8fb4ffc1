// Package config holds the tunable surface of the needs server:
// timer intervals, per-need balance values, world locations and the
// strings shown to players.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zwlucas/dsn-needs/internal/domain/location"
	"github.com/zwlucas/dsn-needs/internal/domain/needs"
)

// Animation describes the host-side affordance played while a player
// interacts with a location.
type Animation struct {
	Scenario string        `yaml:"scenario"` // host animation scenario name
	Duration time.Duration `yaml:"duration"`
	Label    string        `yaml:"label"` // progress bar text
}

// NeedConfig is the per-need balance block.
type NeedConfig struct {
	Cooldown  time.Duration `yaml:"cooldown"`  // between successful resets
	Decrease  int           `yaml:"decrease"`  // subtracted per update tick
	Threshold int           `yaml:"threshold"` // warning / blackout trigger
	Warning   string        `yaml:"warning"`   // shown once when crossing below threshold
	Animation Animation     `yaml:"animation"`
}

// Location is a world-anchored interaction point.
type Location struct {
	Need  string  `yaml:"need"`
	Label string  `yaml:"label"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Z     float64 `yaml:"z"`
}

// Config is the full server configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	DBDialect     string `yaml:"db_dialect"` // "sqlite" or "postgres"
	DBSQLitePath  string `yaml:"db_sqlite_path"`
	DBPostgresDSN string `yaml:"db_postgres_dsn"`

	UpdateInterval time.Duration `yaml:"update_interval"` // decay tick
	SaveInterval   time.Duration `yaml:"save_interval"`   // persistence tick

	Needs map[string]NeedConfig `yaml:"needs"`

	// Blackout fade timings for the sleep deprivation loop.
	BlackoutFadeOut time.Duration `yaml:"blackout_fade_out"`
	BlackoutHold    time.Duration `yaml:"blackout_hold"`
	BlackoutFadeIn  time.Duration `yaml:"blackout_fade_in"`

	SuccessMessage  string `yaml:"success_message"`
	CooldownMessage string `yaml:"cooldown_message"`

	// InteractRadius is how close a player must stand to a location to
	// interact with it.
	InteractRadius float64    `yaml:"interact_radius"`
	Locations      []Location `yaml:"locations"`
}

// Default returns the shipped configuration values.
func Default() Config {
	return Config{
		ListenAddr:   ":8080",
		DBDialect:    "sqlite",
		DBSQLitePath: "dsn_needs.db",

		UpdateInterval: 1 * time.Minute,
		SaveInterval:   5 * time.Minute,

		Needs: map[string]NeedConfig{
			string(needs.NeedHygiene): {
				Cooldown:  5 * time.Minute,
				Decrease:  2,
				Threshold: 20,
				Warning:   "You start to smell. Find a shower.",
				Animation: Animation{
					Scenario: "WORLD_HUMAN_BUM_WASH",
					Duration: 10 * time.Second,
					Label:    "Showering...",
				},
			},
			string(needs.NeedSleep): {
				Cooldown:  10 * time.Minute,
				Decrease:  1,
				Threshold: 20,
				Warning:   "You can barely keep your eyes open. Find a bed.",
				Animation: Animation{
					Scenario: "WORLD_HUMAN_SLEEP_GROUND",
					Duration: 15 * time.Second,
					Label:    "Sleeping...",
				},
			},
		},

		BlackoutFadeOut: 800 * time.Millisecond,
		BlackoutHold:    2 * time.Second,
		BlackoutFadeIn:  800 * time.Millisecond,

		SuccessMessage:  "You feel refreshed.",
		CooldownMessage: "You can't do that again yet.",

		InteractRadius: 2.0,
		Locations: []Location{
			{Need: "hygiene", Label: "Motel Shower", X: 327.31, Y: -211.4, Z: 54.1},
			{Need: "hygiene", Label: "Gym Shower", X: -1249.7, Y: -368.2, Z: 37.4},
			{Need: "sleep", Label: "Motel Bed", X: 313.8, Y: -223.6, Z: 54.2},
			{Need: "sleep", Label: "Apartment Bed", X: -268.1, Y: -957.3, Z: 31.2},
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order. A .env file is honored when present.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive, got %v", c.UpdateInterval)
	}
	if c.SaveInterval <= 0 {
		return fmt.Errorf("save_interval must be positive, got %v", c.SaveInterval)
	}
	for name, nc := range c.Needs {
		if _, err := needs.ParseNeed(name); err != nil {
			return fmt.Errorf("needs config: %w", err)
		}
		if nc.Decrease < 0 {
			return fmt.Errorf("needs.%s.decrease must not be negative", name)
		}
		if nc.Threshold < 0 || nc.Threshold > 100 {
			return fmt.Errorf("needs.%s.threshold must be within [0,100]", name)
		}
	}
	if c.InteractRadius <= 0 {
		return fmt.Errorf("interact_radius must be positive, got %v", c.InteractRadius)
	}
	for _, loc := range c.Locations {
		if _, err := needs.ParseNeed(loc.Need); err != nil {
			return fmt.Errorf("location %q: %w", loc.Label, err)
		}
	}
	switch c.DBDialect {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db_dialect %q", c.DBDialect)
	}
	return nil
}

// Need returns the balance block for a need. Falls back to defaults so a
// sparse YAML file cannot leave a need unconfigured.
func (c *Config) Need(n needs.Need) NeedConfig {
	if nc, ok := c.Needs[string(n)]; ok {
		return nc
	}
	return Default().Needs[string(n)]
}

// LocationIndex builds the proximity index over the configured locations.
// Entries with an invalid need name are skipped; Validate rejects them
// before the server starts.
func (c *Config) LocationIndex() *location.Index {
	locs := make([]location.Location, 0, len(c.Locations))
	for _, l := range c.Locations {
		need, err := needs.ParseNeed(l.Need)
		if err != nil {
			continue
		}
		locs = append(locs, location.Location{
			Need:  need,
			Label: l.Label,
			Pos:   location.Point{X: l.X, Y: l.Y, Z: l.Z},
		})
	}
	return location.NewIndex(locs)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NEEDS_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DB_DIALECT"); v != "" {
		cfg.DBDialect = v
	}
	if v := os.Getenv("DB_SQLITE_PATH"); v != "" {
		cfg.DBSQLitePath = v
	}
	if v := os.Getenv("DB_POSTGRES_DSN"); v != "" {
		cfg.DBPostgresDSN = v
	} else if v := os.Getenv("DATABASE_URL"); v != "" && cfg.DBPostgresDSN == "" {
		cfg.DBPostgresDSN = v
	}
	if d := getEnvDuration("NEEDS_UPDATE_INTERVAL"); d > 0 {
		cfg.UpdateInterval = d
	}
	if d := getEnvDuration("NEEDS_SAVE_INTERVAL"); d > 0 {
		cfg.SaveInterval = d
	}
}

func getEnvDuration(key string) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0
	}
	return d
}
