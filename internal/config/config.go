// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Storage drivers.
const (
	DriverSQLite    = "sqlite"
	DriverPostgREST = "postgrest"
)

// DefaultConfigPaths lists where a config file is looked for, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/dog-boarding/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Site    SiteConfig    `koanf:"site"`
	Sync    SyncConfig    `koanf:"sync"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `koanf:"addr"`

	// RateLimit is the number of sync triggers allowed per RateWindow per client IP.
	RateLimit  int           `koanf:"rate_limit"`
	RateWindow time.Duration `koanf:"rate_window"`
}

// StorageConfig selects and configures the persistence gateway. The Supabase
// settings apply only to the postgrest driver: there, leaving either unset
// makes sync requests fail with 500 "Supabase configuration missing". The
// default sqlite driver ignores them.
type StorageConfig struct {
	Driver      string `koanf:"driver"`
	DataDir     string `koanf:"data_dir"`
	SupabaseURL string `koanf:"supabase_url"`
	SupabaseKey string `koanf:"supabase_key"`
}

// SiteConfig describes the external booking site.
type SiteConfig struct {
	BaseURL     string        `koanf:"base_url"`
	Username    string        `koanf:"username"`
	Password    string        `koanf:"password"`
	UserAgent   string        `koanf:"user_agent"`
	PageTimeout time.Duration `koanf:"page_timeout"`
}

// SyncConfig controls the sync job and its scheduler.
type SyncConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Schedule         string        `koanf:"schedule"`
	RequestDelay     time.Duration `koanf:"request_delay"`
	MaxSchedulePages int           `koanf:"max_schedule_pages"`
	SessionTTL       time.Duration `koanf:"session_ttl"`

	// RetryDelays are the backoff waits between attempts at a site request
	// that failed temporarily; their count is the number of retries.
	RetryDelays []time.Duration `koanf:"retry_delays"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8099",
			RateLimit:  5,
			RateWindow: time.Minute,
		},
		Storage: StorageConfig{
			Driver:  DriverSQLite,
			DataDir: "/data",
		},
		Site: SiteConfig{
			BaseURL:     "https://agirlandyourdog.com",
			UserAgent:   "Mozilla/5.0 (compatible; DogBoardingSync/2.0)",
			PageTimeout: 15 * time.Second,
		},
		Sync: SyncConfig{
			Enabled:          true,
			Schedule:         "0 0 2 * * *",
			RequestDelay:     1500 * time.Millisecond,
			MaxSchedulePages: 10,
			SessionTTL:       24 * time.Hour,
			RetryDelays:      []time.Duration{5 * time.Second, 30 * time.Second, 5 * time.Minute},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration without reading files or env.
func Default() *Config {
	return defaultConfig()
}

// Load builds the configuration: defaults, then the config file if one
// exists, then environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}
	if err := splitListValues(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	cfg.Site.BaseURL = strings.TrimRight(cfg.Site.BaseURL, "/")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings maps environment variable names (lower-cased) to config paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"http_addr":        "server.addr",
	"sync_rate_limit":  "server.rate_limit",
	"sync_rate_window": "server.rate_window",

	"storage_driver":    "storage.driver",
	"data_dir":          "storage.data_dir",
	"supabase_url":      "storage.supabase_url", // postgrest driver only
	"supabase_anon_key": "storage.supabase_key", // postgrest driver only

	"external_site_url":      "site.base_url",
	"external_site_username": "site.username",
	"external_site_password": "site.password",
	"sync_page_timeout":      "site.page_timeout",

	"sync_enabled":            "sync.enabled",
	"sync_schedule":           "sync.schedule",
	"sync_request_delay":      "sync.request_delay",
	"sync_max_schedule_pages": "sync.max_schedule_pages",
	"sync_session_ttl":        "sync.session_ttl",
	"sync_retry_delays":       "sync.retry_delays",

	"log_level":  "logging.level",
	"log_format": "logging.format",
}

func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// listPaths are config paths that environment variables set as
// comma-separated strings.
var listPaths = []string{
	"sync.retry_delays",
}

// splitListValues turns comma-separated string values at listPaths into
// slices. An empty string yields an empty list.
func splitListValues(k *koanf.Koanf) error {
	for _, path := range listPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		items := []string{}
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		if err := k.Set(path, items); err != nil {
			return fmt.Errorf("setting %s: %w", path, err)
		}
	}
	return nil
}

// Validate checks settings that would make the service unusable at startup.
// Missing site credentials or Supabase settings are reported per request
// instead.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.DataDir == "" {
			errs = append(errs, errors.New("storage.data_dir is required for the sqlite driver"))
		}
	case DriverPostgREST:
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("site.base_url must be an absolute http(s) URL, got %q", c.Site.BaseURL))
	}

	if c.Sync.Enabled && strings.TrimSpace(c.Sync.Schedule) == "" {
		errs = append(errs, errors.New("sync.schedule is required when the scheduler is enabled"))
	}
	if c.Sync.RequestDelay < 0 {
		errs = append(errs, errors.New("sync.request_delay must not be negative"))
	}
	for _, d := range c.Sync.RetryDelays {
		if d < 0 {
			errs = append(errs, errors.New("sync.retry_delays must not be negative"))
			break
		}
	}
	if c.Sync.MaxSchedulePages < 1 {
		errs = append(errs, errors.New("sync.max_schedule_pages must be at least 1"))
	}
	if c.Server.RateLimit < 1 || c.Server.RateWindow <= 0 {
		errs = append(errs, errors.New("server rate limit and window must be positive"))
	}

	return errors.Join(errs...)
}

// HasSiteCredentials reports whether both scrape credentials are set.
func (c *Config) HasSiteCredentials() bool {
	return c.Site.Username != "" && c.Site.Password != ""
}

// HasSupabase reports whether the PostgREST gateway is configured.
func (c *Config) HasSupabase() bool {
	return c.Storage.SupabaseURL != "" && c.Storage.SupabaseKey != ""
}

// DatabasePath is the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Storage.DataDir, "dog-boarding.db")
}
