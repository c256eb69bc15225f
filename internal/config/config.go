package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/dwell/config.yaml"

// Config holds all dwell configuration. Values are read once at startup.
type Config struct {
	Tracking  TrackingConfig  `yaml:"tracking"`
	Retention RetentionConfig `yaml:"retention"`
	Capture   CaptureConfig   `yaml:"capture"`
	Storage   StorageConfig   `yaml:"storage"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type TrackingConfig struct {
	TickIntervalMs   int      `yaml:"tick_interval_ms"`
	MinRecordSeconds int      `yaml:"min_record_seconds"`
	UntrackedSchemes []string `yaml:"untracked_schemes"`
}

type RetentionConfig struct {
	Days                 int `yaml:"days"`
	SweepIntervalMinutes int `yaml:"sweep_interval_minutes"`
}

type CaptureConfig struct {
	DenylistDomains []string `yaml:"denylist_domains"`
	DenylistRegex   []string `yaml:"denylist_regex"`
}

type StorageConfig struct {
	Path              string `yaml:"path"`
	SQLiteFile        string `yaml:"sqlite_file"`
	SQLiteJournalMode string `yaml:"sqlite_journal_mode"`
}

type DaemonConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	AuthToken       string `yaml:"auth_token"`
	MaxMessageBytes int    `yaml:"max_message_bytes"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// TickInterval is the poller period.
func (c TrackingConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// MinRecord is the accumulated time a tab needs before it is recorded.
func (c TrackingConfig) MinRecord() time.Duration {
	return time.Duration(c.MinRecordSeconds) * time.Second
}

// Horizon is the age beyond which sessions are purged.
func (c RetentionConfig) Horizon() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

// SweepInterval is the retention sweeper period.
func (c RetentionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}

// Addr is the daemon listen address.
func (c DaemonConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks that timing values are positive and enums are known.
func (c *Config) Validate() error {
	if c.Tracking.TickIntervalMs <= 0 {
		return fmt.Errorf("tracking.tick_interval_ms must be positive, got %d", c.Tracking.TickIntervalMs)
	}
	if c.Tracking.MinRecordSeconds <= 0 {
		return fmt.Errorf("tracking.min_record_seconds must be positive, got %d", c.Tracking.MinRecordSeconds)
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention.days must be positive, got %d", c.Retention.Days)
	}
	if c.Retention.SweepIntervalMinutes <= 0 {
		return fmt.Errorf("retention.sweep_interval_minutes must be positive, got %d", c.Retention.SweepIntervalMinutes)
	}
	if c.Daemon.Port < 0 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port out of range: %d", c.Daemon.Port)
	}
	switch strings.ToLower(c.Storage.SQLiteJournalMode) {
	case "", "delete", "truncate", "persist", "memory", "wal", "off":
	default:
		return fmt.Errorf("storage.sqlite_journal_mode must be one of delete, truncate, persist, memory, wal, off; got %q", c.Storage.SQLiteJournalMode)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// DBPath returns the SQLite database file path with ~ expanded.
func (c *Config) DBPath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
