package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rowanhart/localwire/pkg/locale"
	"github.com/rowanhart/localwire/pkg/relevance"
	"github.com/rowanhart/localwire/pkg/source"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig           `yaml:"database"`
	Log      LogConfig                `yaml:"log"`
	Locale   LocaleConfig             `yaml:"locale"`
	Schedule ScheduleConfig           `yaml:"schedule"`
	Fetch    FetchConfig              `yaml:"fetch"`
	Breaker  BreakerConfig            `yaml:"breaker"`
	Scoring  relevance.Config         `yaml:"scoring"`
	Feedback relevance.AdjusterConfig `yaml:"feedback"`
	Sources  []SourceEntry            `yaml:"sources"`
	Server   ServerConfig             `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// LocaleConfig names the target area. Either city/state or a zip the
// resolver knows; scoring phrase lists may override the derived defaults.
type LocaleConfig struct {
	City        string         `yaml:"city"`
	State       string         `yaml:"state"`
	Zip         string         `yaml:"zip"`
	ExtraPlaces []locale.Place `yaml:"extra_places"`
}

// Key is the locale identifier used for watermarks and training signals.
func (l LocaleConfig) Key() string {
	return strings.ToLower(strings.TrimSpace(l.City + ", " + l.State))
}

// ScheduleConfig configures cycle cadence.
type ScheduleConfig struct {
	CycleInterval   string `yaml:"cycle_interval"`
	DefaultRefresh  string `yaml:"default_refresh"`
	CycleDeadline   string `yaml:"cycle_deadline"`
	ThrottledMin    string `yaml:"throttled_min"`
	ForbiddenWindow string `yaml:"forbidden_window"`
	PreFetchDelay   string `yaml:"pre_fetch_delay"`
}

// ParseCycleInterval returns the daemon cycle interval.
func (s ScheduleConfig) ParseCycleInterval() time.Duration {
	return parseDuration(s.CycleInterval, 15*time.Minute)
}

// ParseDefaultRefresh returns the default per-source cadence.
func (s ScheduleConfig) ParseDefaultRefresh() time.Duration {
	return parseDuration(s.DefaultRefresh, time.Hour)
}

// ParseCycleDeadline returns the advisory whole-cycle deadline.
func (s ScheduleConfig) ParseCycleDeadline() time.Duration {
	return parseDuration(s.CycleDeadline, 5*time.Minute)
}

// ParseThrottledMin returns the minimum cadence for throttled sources.
func (s ScheduleConfig) ParseThrottledMin() time.Duration {
	return parseDuration(s.ThrottledMin, 30*time.Minute)
}

// ParseForbiddenWindow returns how long a 403 keeps a source throttled.
func (s ScheduleConfig) ParseForbiddenWindow() time.Duration {
	return parseDuration(s.ForbiddenWindow, time.Hour)
}

// ParsePreFetchDelay returns the throttled-source pre-fetch delay.
func (s ScheduleConfig) ParsePreFetchDelay() time.Duration {
	return parseDuration(s.PreFetchDelay, 5*time.Second)
}

// FetchConfig configures the concurrent fetcher.
type FetchConfig struct {
	Timeout          string `yaml:"timeout"`
	MaxParallel      int    `yaml:"max_parallel"`
	MaxAttempts      int    `yaml:"max_attempts"`
	BaseDelay        string `yaml:"base_delay"`
	MaxDelay         string `yaml:"max_delay"`
	DefaultMinLength int    `yaml:"default_min_length"`
}

// RunnerConfig converts to the fetcher's runtime configuration.
func (f FetchConfig) RunnerConfig() source.RunnerConfig {
	return source.RunnerConfig{
		Timeout:          parseDuration(f.Timeout, 45*time.Second),
		MaxParallel:      f.MaxParallel,
		MaxAttempts:      f.MaxAttempts,
		BaseDelay:        parseDuration(f.BaseDelay, time.Second),
		MaxDelay:         parseDuration(f.MaxDelay, 15*time.Second),
		DefaultMinLength: f.DefaultMinLength,
	}
}

// BreakerConfig configures the per-source circuit breaker.
type BreakerConfig struct {
	FailureThreshold int    `yaml:"failure_threshold"`
	Cooldown         string `yaml:"cooldown"`
}

// ParseCooldown returns the breaker cooldown window.
func (b BreakerConfig) ParseCooldown() time.Duration {
	return parseDuration(b.Cooldown, 15*time.Minute)
}

// SourceEntry is one configured source.
type SourceEntry struct {
	ID                   string `yaml:"id"`
	Name                 string `yaml:"name"`
	Endpoint             string `yaml:"endpoint"`
	Mode                 string `yaml:"mode"`
	Category             string `yaml:"category"`
	Enabled              bool   `yaml:"enabled"`
	RequireLocaleMention bool   `yaml:"require_locale_mention"`
	RefreshInterval      string `yaml:"refresh_interval"`
	MinContentLength     int    `yaml:"min_content_length"`
	ItemSelector         string `yaml:"item_selector"`
	TitleSelector        string `yaml:"title_selector"`
	LinkSelector         string `yaml:"link_selector"`
	SummarySelector      string `yaml:"summary_selector"`
}

// ToSource converts the entry to the fetcher-facing configuration.
func (e SourceEntry) ToSource() source.Config {
	return source.Config{
		ID:                   e.ID,
		Name:                 e.Name,
		Endpoint:             e.Endpoint,
		Mode:                 source.Mode(e.Mode),
		Category:             e.Category,
		Enabled:              e.Enabled,
		RequireLocaleMention: e.RequireLocaleMention,
		RefreshInterval:      parseDuration(e.RefreshInterval, 0),
		MinContentLength:     e.MinContentLength,
		ItemSelector:         e.ItemSelector,
		TitleSelector:        e.TitleSelector,
		LinkSelector:         e.LinkSelector,
		SummarySelector:      e.SummarySelector,
	}
}

// ServerConfig configures the review HTTP API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with tuned defaults and no sources.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./localwire.db"},
		Log:      LogConfig{Level: "info"},
		Schedule: ScheduleConfig{
			CycleInterval:  "15m",
			DefaultRefresh: "1h",
			CycleDeadline:  "5m",
		},
		Fetch: FetchConfig{
			Timeout:          "45s",
			MaxParallel:      8,
			MaxAttempts:      3,
			BaseDelay:        "1s",
			MaxDelay:         "15s",
			DefaultMinLength: 120,
		},
		Breaker:  BreakerConfig{FailureThreshold: 3, Cooldown: "15m"},
		Scoring:  relevance.DefaultConfig(),
		Feedback: relevance.DefaultAdjusterConfig(),
		Server:   ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file, applies env overrides, and
// fills derived locale fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := resolveLocale(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// resolveLocale fills city/state from a bare zip and derives the primary
// scoring phrases when none are configured.
func resolveLocale(cfg *Config) error {
	if cfg.Locale.City == "" && cfg.Locale.Zip != "" {
		resolver := locale.NewResolver(cfg.Locale.ExtraPlaces)
		place, err := resolver.Resolve(cfg.Locale.Zip)
		if err != nil {
			return fmt.Errorf("resolve locale: %w", err)
		}
		cfg.Locale.City = place.City
		cfg.Locale.State = place.State
	}

	if len(cfg.Scoring.LocalePhrases) == 0 && cfg.Locale.City != "" {
		cfg.Scoring.LocalePhrases = []string{
			cfg.Locale.City,
			cfg.Locale.City + ", " + cfg.Locale.State,
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOCALWIRE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOCALWIRE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOCALWIRE_LOCALE"); v != "" {
		cfg.Locale.Zip = v
		cfg.Locale.City = ""
	}
	if v := os.Getenv("LOCALWIRE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
