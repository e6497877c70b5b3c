// Package config reads the application configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Analyzer AnalyzerConfig
	Sweep    SweepConfig
	Debug    bool
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Addr string
}

// DBConfig holds the SQLite database location.
type DBConfig struct {
	Path string
}

// AnalyzerConfig holds settings for the photo analyzer. An empty APIKey
// disables analysis; items are then entered by hand.
type AnalyzerConfig struct {
	BaseURL string
	APIKey  string
}

// SweepConfig holds the nightly freshness sweep schedule.
type SweepConfig struct {
	CronSchedule string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from
		// the environment directly.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr: getenvWithDefault("PANTRYLOG_ADDR", ":8080"),
		},
		DB: DBConfig{
			Path: getenvWithDefault("PANTRYLOG_DB", "pantrylog.db"),
		},
		Analyzer: AnalyzerConfig{
			BaseURL: os.Getenv("PANTRYLOG_ANALYZER_URL"),
			APIKey:  os.Getenv("PANTRYLOG_ANALYZER_KEY"),
		},
		Sweep: SweepConfig{
			CronSchedule: getenvWithDefault("PANTRYLOG_SWEEP_SCHEDULE", "5 0 * * *"),
		},
		Debug: os.Getenv("PANTRYLOG_DEBUG") == "1",
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Server.Addr == "" {
		return errors.New("PANTRYLOG_ADDR must not be empty")
	}
	if c.DB.Path == "" {
		return errors.New("PANTRYLOG_DB must not be empty")
	}
	if c.Sweep.CronSchedule == "" {
		return errors.New("PANTRYLOG_SWEEP_SCHEDULE must not be empty")
	}
	return nil
}

// AnalysisEnabled reports whether a photo analyzer is configured.
func (c *Config) AnalysisEnabled() bool {
	return c.Analyzer.APIKey != ""
}

func getenvWithDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
