package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings. A .env file in the
// working directory is loaded first when present.
const (
	EnvDriver   = "POSITIONS_DB_DRIVER"
	EnvDSN      = "POSITIONS_DB_DSN"
	EnvLogLevel = "POSITIONS_LOG_LEVEL"
)

// Config is the maintenance runner configuration.
type Config struct {
	Database DatabaseConfig `json:"database" yaml:"database"`
	Recalc   RecalcConfig   `json:"recalc" yaml:"recalc"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DatabaseConfig selects the journal store.
type DatabaseConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite3" or "postgres"
	DSN    string `json:"dsn" yaml:"dsn"`
}

// RecalcConfig bounds retries of position key recalculation.
type RecalcConfig struct {
	Retries int    `json:"retries" yaml:"retries"`
	Backoff string `json:"backoff" yaml:"backoff"` // e.g. "50ms"
}

// BackoffDuration parses Backoff. An empty value is zero.
func (r RecalcConfig) BackoffDuration() (time.Duration, error) {
	if r.Backoff == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Backoff)
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// SlogLevel maps Level onto a slog.Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// Load reads path, or starts from Default when path is empty, applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields the
// file leaves out keep their default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDriver); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv(EnvDSN); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// SaveToFile writes YAML for .yaml/.yml paths and indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("database.driver must be 'sqlite3' or 'postgres', got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Recalc.Retries < 0 {
		return fmt.Errorf("recalc.retries must not be negative")
	}
	if d, err := c.Recalc.BackoffDuration(); err != nil {
		return fmt.Errorf("recalc.backoff: %w", err)
	} else if d < 0 {
		return fmt.Errorf("recalc.backoff must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "./positions.db",
		},
		Recalc: RecalcConfig{
			Retries: 3,
			Backoff: "50ms",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
