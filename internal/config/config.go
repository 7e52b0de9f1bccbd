// Package config loads the nostrcal YAML config file and the secret key.
//
// The secret key never lives in the YAML file. It comes from the
// NOSTRCAL_NSEC environment variable, which may be set by a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvSecretKey names the environment variable holding the hex or nsec key.
const EnvSecretKey = "NOSTRCAL_NSEC"

// Defaults for fields left empty.
const (
	DefaultTimezone       = "UTC"
	DefaultConnectTimeout = 5 * time.Second
	DefaultQueryWait      = 3 * time.Second
	DefaultPublishTimeout = 5 * time.Second
	DefaultHistoryDays    = 30
	DefaultLookaheadDays  = 30
	DefaultLogLevel       = "info"
	DefaultMetricsAddr    = "127.0.0.1:9464"
	DefaultRefreshCron    = "*/5 * * * *"
)

// DefaultRelays is the relay set written on first run.
var DefaultRelays = []string{
	"wss://relay.damus.io",
	"wss://nos.lol",
	"wss://relay.nostr.band",
}

// Config is the top-level client configuration.
type Config struct {
	// Relays are the websocket URLs every query and publish goes to.
	Relays []string `yaml:"relays" json:"relays"`

	// Timezone is the IANA zone used to read dates and render times.
	Timezone string `yaml:"timezone" json:"timezone"`

	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	QueryWait      time.Duration `yaml:"query_wait" json:"query_wait"`
	PublishTimeout time.Duration `yaml:"publish_timeout" json:"publish_timeout"`

	// HistoryDays bounds how far back a host loads all-day events.
	HistoryDays int `yaml:"history_days" json:"history_days"`

	// LookaheadDays is the default range of `nostrcal dates`.
	LookaheadDays int `yaml:"lookahead_days" json:"lookahead_days"`

	// Journal is the SQLite path raw events are journaled to. Empty
	// disables journaling.
	Journal string `yaml:"journal" json:"journal"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MetricsAddr is where `nostrcal watch` serves /metrics.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`

	// RefreshCron is the schedule `nostrcal watch` re-queries relays on.
	RefreshCron string `yaml:"refresh_cron" json:"refresh_cron"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Relays:         append([]string(nil), DefaultRelays...),
		Timezone:       DefaultTimezone,
		ConnectTimeout: DefaultConnectTimeout,
		QueryWait:      DefaultQueryWait,
		PublishTimeout: DefaultPublishTimeout,
		HistoryDays:    DefaultHistoryDays,
		LookaheadDays:  DefaultLookaheadDays,
		LogLevel:       DefaultLogLevel,
		MetricsAddr:    DefaultMetricsAddr,
		RefreshCron:    DefaultRefreshCron,
	}
}

// Normalize fills in missing or zero values so partially filled files
// still behave.
func (c *Config) Normalize() {
	if c.Relays == nil {
		c.Relays = append([]string(nil), DefaultRelays...)
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.QueryWait <= 0 {
		c.QueryWait = DefaultQueryWait
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = DefaultHistoryDays
	}
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = DefaultLookaheadDays
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = DefaultLogLevel
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = DefaultMetricsAddr
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefreshCron
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Level maps LogLevel onto a slog level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads the YAML file at path. A missing file is created with the
// defaults (0600) and the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file and rename, with
// 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".nostrcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "nostrcal.yaml"
	}
	return filepath.Join(dir, "nostrcal", "config.yaml")
}

// LoadEnv loads .env files into the process environment. Missing files
// are not an error; variables already set are kept.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// SecretKey returns the key from NOSTRCAL_NSEC, or "" when unset.
func SecretKey() string {
	return os.Getenv(EnvSecretKey)
}
