// Package config loads docfeed's settings from ~/.docfeed/config.json,
// a .env file and DOCFEED_* environment variables.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the persistent application configuration
type Config struct {
	// Catalog server
	Server ServerConfig `json:"server"`

	// Feed behaviour
	Feed FeedConfig `json:"feed"`

	// Batch mutations
	Batch BatchConfig `json:"batch"`

	// Job status polling
	Jobs JobsConfig `json:"jobs"`

	// Session names the storage slots the filter set is kept in. Two
	// sessions never share filters.
	Session string `json:"session"`

	// DataDir holds the SQLite database and logs. Defaults to ~/.docfeed.
	DataDir string `json:"data_dir,omitempty"`

	LogLevel string `json:"log_level"`
}

// ServerConfig locates the catalog API
type ServerConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// FeedConfig holds feed preferences
type FeedConfig struct {
	Order string `json:"order"` // "imported", "extracted" or "" for server default
	Query string `json:"query,omitempty"`
	// PrefetchThreshold is how many rows from the end of the list count as
	// "near the end" and trigger the next page.
	PrefetchThreshold int `json:"prefetch_threshold"`
}

// BatchConfig bounds batch mutation fan-out
type BatchConfig struct {
	Concurrency   int     `json:"concurrency"`
	RatePerSecond float64 `json:"rate_per_second"`
	Burst         int     `json:"burst"`
}

// JobsConfig holds job poller settings
type JobsConfig struct {
	PollIntervalSeconds int `json:"poll_interval_seconds"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "http://localhost:8000",
			TimeoutSeconds: 15,
		},
		Feed: FeedConfig{
			Order:             "imported",
			PrefetchThreshold: 3,
		},
		Batch: BatchConfig{
			Concurrency:   4,
			RatePerSecond: 10,
			Burst:         4,
		},
		Jobs: JobsConfig{
			PollIntervalSeconds: 5,
		},
		Session:  "default",
		LogLevel: "info",
	}
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}

// PollInterval returns the time between job status polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollIntervalSeconds) * time.Second
}

// DataPath returns the data directory, defaulting to ~/.docfeed.
func (c *Config) DataPath() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".docfeed")
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataPath(), "docfeed.db")
}

// LogDir returns the directory log files are written to.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataPath(), "logs")
}

// EventLogPath returns the JSONL event journal written by the TUI.
func (c *Config) EventLogPath() string {
	return filepath.Join(c.LogDir(), "docfeed-events.jsonl")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".docfeed", "config.json")
}

// Load reads config from the default path. See LoadFrom.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path, or returns defaults when the file does
// not exist or is malformed. A .env file in the working directory and
// DOCFEED_* variables are applied on top.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			cfg = DefaultConfig()
		}
	}

	cfg.AutoPopulateFromEnv()
	cfg.fillDefaults()
	return cfg, nil
}

// Save writes config to path
func (c *Config) Save(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// AutoPopulateFromEnv applies DOCFEED_* environment overrides
func (c *Config) AutoPopulateFromEnv() {
	if v := os.Getenv("DOCFEED_SERVER"); v != "" {
		c.Server.URL = v
	}
	if v := os.Getenv("DOCFEED_SESSION"); v != "" {
		c.Session = v
	}
	if v := os.Getenv("DOCFEED_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCFEED_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("DOCFEED_ORDER"); v != "" {
		c.Feed.Order = v
	}
	if secs, ok := envSeconds("DOCFEED_POLL_INTERVAL"); ok {
		c.Jobs.PollIntervalSeconds = secs
	}
	if secs, ok := envSeconds("DOCFEED_TIMEOUT"); ok {
		c.Server.TimeoutSeconds = secs
	}
}

// envSeconds reads a duration ("5s", "1m") or a bare number of seconds.
func envSeconds(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n, true
	}
	if d, err := time.ParseDuration(v); err == nil && d >= time.Second {
		return int(d / time.Second), true
	}
	return 0, false
}

// fillDefaults replaces zero values a hand-edited file may leave behind.
func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.Server.URL == "" {
		c.Server.URL = def.Server.URL
	}
	c.Server.URL = strings.TrimRight(c.Server.URL, "/")
	if c.Server.TimeoutSeconds <= 0 {
		c.Server.TimeoutSeconds = def.Server.TimeoutSeconds
	}
	if c.Feed.PrefetchThreshold <= 0 {
		c.Feed.PrefetchThreshold = def.Feed.PrefetchThreshold
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = def.Batch.Concurrency
	}
	if c.Batch.RatePerSecond <= 0 {
		c.Batch.RatePerSecond = def.Batch.RatePerSecond
	}
	if c.Batch.Burst <= 0 {
		c.Batch.Burst = def.Batch.Burst
	}
	if c.Jobs.PollIntervalSeconds <= 0 {
		c.Jobs.PollIntervalSeconds = def.Jobs.PollIntervalSeconds
	}
	if c.Session == "" {
		c.Session = def.Session
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}
