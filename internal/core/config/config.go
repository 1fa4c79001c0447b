package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level application config.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Processing ProcessingConfig `koanf:"processing"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// ProcessingConfig tunes the async pipeline: payload limits for shape
// validation, the retry schedule, and the worker pool.
type ProcessingConfig struct {
	MaxRetries      int    `koanf:"max_retries"`      // attempts including the first
	RetryBaseDelay  string `koanf:"retry_base_delay"` // one backoff time unit
	SoftTimeout     string `koanf:"soft_timeout"`     // cooperative stop budget
	HardTimeout     string `koanf:"hard_timeout"`     // absolute execution budget
	MaxPayloadBytes int    `koanf:"max_payload_bytes"`
	MaxDepth        int    `koanf:"max_depth"`
	WorkerCount     int    `koanf:"worker_count"`
	QueueSize       int    `koanf:"queue_size"`
	BatchMaxEvents  int    `koanf:"batch_max_events"`
}

// RetryBaseDelayDuration parses the configured base delay unit.
func (c ProcessingConfig) RetryBaseDelayDuration() (time.Duration, error) {
	return time.ParseDuration(c.RetryBaseDelay)
}

func (c ProcessingConfig) SoftTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(c.SoftTimeout)
}

func (c ProcessingConfig) HardTimeoutDuration() (time.Duration, error) {
	return time.ParseDuration(c.HardTimeout)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be > 0")
	}
	if c.Database.MaxIdleConns <= 0 {
		return fmt.Errorf("database.max_idle_conns must be > 0")
	}
	if c.Database.Type != "" && c.Database.Type != "postgres" {
		return fmt.Errorf("unsupported database.type %q", c.Database.Type)
	}

	if c.Processing.MaxRetries <= 0 {
		return fmt.Errorf("processing.max_retries must be > 0")
	}
	base, err := c.Processing.RetryBaseDelayDuration()
	if err != nil {
		return fmt.Errorf("invalid processing.retry_base_delay %q: %w", c.Processing.RetryBaseDelay, err)
	}
	if base <= 0 {
		return fmt.Errorf("processing.retry_base_delay must be > 0")
	}
	soft, err := c.Processing.SoftTimeoutDuration()
	if err != nil {
		return fmt.Errorf("invalid processing.soft_timeout %q: %w", c.Processing.SoftTimeout, err)
	}
	hard, err := c.Processing.HardTimeoutDuration()
	if err != nil {
		return fmt.Errorf("invalid processing.hard_timeout %q: %w", c.Processing.HardTimeout, err)
	}
	if soft <= 0 || hard <= 0 {
		return fmt.Errorf("processing timeouts must be > 0")
	}
	if soft > hard {
		return fmt.Errorf("processing.soft_timeout %q must not exceed processing.hard_timeout %q",
			c.Processing.SoftTimeout, c.Processing.HardTimeout)
	}
	if c.Processing.MaxPayloadBytes <= 0 {
		return fmt.Errorf("processing.max_payload_bytes must be > 0")
	}
	if c.Processing.MaxDepth <= 0 {
		return fmt.Errorf("processing.max_depth must be > 0")
	}
	if c.Processing.WorkerCount <= 0 {
		return fmt.Errorf("processing.worker_count must be > 0")
	}
	if c.Processing.QueueSize <= 0 {
		return fmt.Errorf("processing.queue_size must be > 0")
	}
	if c.Processing.BatchMaxEvents <= 0 {
		return fmt.Errorf("processing.batch_max_events must be > 0")
	}

	return nil
}

// Load parses config from file + env and validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                  8080,
		"server.host":                  "0.0.0.0",
		"server.max_body_size_mb":      1,
		"server.mode":                  "release",
		"database.type":                "postgres",
		"database.dsn":                 "",
		"database.max_open_conns":      25,
		"database.max_idle_conns":      25,
		"database.auto_migrate":        true,
		"processing.max_retries":       3,
		"processing.retry_base_delay":  "60s",
		"processing.soft_timeout":      "25m",
		"processing.hard_timeout":      "30m",
		"processing.max_payload_bytes": 1 << 20,
		"processing.max_depth":         10,
		"processing.worker_count":      4,
		"processing.queue_size":        1024,
		"processing.batch_max_events":  100,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("PULSEBOARD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PULSEBOARD_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
