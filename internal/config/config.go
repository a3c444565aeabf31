// Package config loads service configuration from an optional TOML file with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"nebnav/internal/util"
)

// Config holds everything the binary needs at startup.
type Config struct {
	Addr      string `toml:"addr"`
	DBPath    string `toml:"db_path"`
	StaticDir string `toml:"static_dir"`

	Gemini      GeminiConfig      `toml:"gemini"`
	Evaporation EvaporationConfig `toml:"evaporation"`
}

// GeminiConfig configures the categorization collaborator.
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"` // Go duration string, e.g. "30s"
}

// EvaporationConfig configures the backlog sweep. ThresholdDays is the idle
// age after which a backlog task evaporates; IntervalMinutes <= 0 disables
// the periodic trigger (the startup sweep still runs).
type EvaporationConfig struct {
	ThresholdDays   int `toml:"threshold_days"`
	IntervalMinutes int `toml:"interval_minutes"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:      ":8080",
		DBPath:    "data/nebby.db",
		StaticDir: "web/dist",
		Gemini: GeminiConfig{
			Model:   "gemini-flash-lite-latest",
			Timeout: "30s",
		},
		Evaporation: EvaporationConfig{
			ThresholdDays:   30,
			IntervalMinutes: 0,
		},
	}
}

// Load merges defaults, the TOML file at path (skipped when absent), and
// environment variables, later sources taking precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// No file is fine; env and defaults still apply.
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Addr = util.EnvOrDefault("NEBNAV_ADDR", c.Addr)
	c.DBPath = util.EnvOrDefault("NEBNAV_DB_PATH", c.DBPath)
	c.StaticDir = util.EnvOrDefault("NEBNAV_STATIC_DIR", c.StaticDir)
	c.Gemini.APIKey = util.EnvOrDefault("GEMINI_API_KEY", c.Gemini.APIKey)
	c.Gemini.Model = util.EnvOrDefault("NEBNAV_GEMINI_MODEL", c.Gemini.Model)
	c.Gemini.Timeout = util.EnvOrDefault("NEBNAV_GEMINI_TIMEOUT", c.Gemini.Timeout)
	c.Evaporation.ThresholdDays = util.EnvOrDefaultInt("NEBNAV_EVAPORATION_THRESHOLD_DAYS", c.Evaporation.ThresholdDays)
	c.Evaporation.IntervalMinutes = util.EnvOrDefaultInt("NEBNAV_EVAPORATION_INTERVAL_MINUTES", c.Evaporation.IntervalMinutes)
}

// GeminiTimeout parses the configured timeout, falling back to 30s.
func (c *Config) GeminiTimeout() time.Duration {
	d, err := time.ParseDuration(c.Gemini.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// EvaporationThreshold returns the idle age as a duration.
func (c *Config) EvaporationThreshold() time.Duration {
	if c.Evaporation.ThresholdDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(c.Evaporation.ThresholdDays) * 24 * time.Hour
}

// EvaporationInterval returns the periodic trigger spacing; zero disables it.
func (c *Config) EvaporationInterval() time.Duration {
	if c.Evaporation.IntervalMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Evaporation.IntervalMinutes) * time.Minute
}
