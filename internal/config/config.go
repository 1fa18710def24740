// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ldsarchive/talkscraper/internal/scraper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Renderer RendererConfig `mapstructure:"renderer"`
	Store    StoreConfig    `mapstructure:"store"`
	Artifact ArtifactConfig `mapstructure:"artifacts"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the status HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScraperConfig governs pipeline behavior.
type ScraperConfig struct {
	BaseURL       string   `mapstructure:"base_url"`
	Locales       []string `mapstructure:"locales"`
	Concurrency   int      `mapstructure:"concurrency"`
	DelaySeconds  int      `mapstructure:"delay_seconds"`
	UserAgent     string   `mapstructure:"user_agent"`
	RetryAttempts int      `mapstructure:"retry_attempts"`
}

// HTTPConfig configures fetch timeouts and retry backoff.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
}

// RendererConfig configures the headless footnote renderer.
type RendererConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
}

// StoreConfig controls access to the SQLite state database.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ArtifactConfig sets where extracted talks are saved.
type ArtifactConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TALKSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scraper.base_url", "https://www.churchofjesuschrist.org/study/general-conference")
	v.SetDefault("scraper.locales", []string{"eng", "spa"})
	v.SetDefault("scraper.concurrency", 4)
	v.SetDefault("scraper.delay_seconds", 1)
	v.SetDefault("scraper.user_agent", "talkscraper/1.0 (+https://github.com/ldsarchive/talkscraper)")
	v.SetDefault("scraper.retry_attempts", 3)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.backoff_initial_ms", 2000)
	v.SetDefault("renderer.enabled", false)
	v.SetDefault("renderer.max_parallel", 2)
	v.SetDefault("renderer.nav_timeout_seconds", 25)
	v.SetDefault("store.path", "data/talkscraper.db")
	v.SetDefault("artifacts.enabled", true)
	v.SetDefault("artifacts.dir", "conf")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if c.Scraper.Concurrency <= 0 {
		return fmt.Errorf("scraper.concurrency must be > 0")
	}
	if len(c.Scraper.Locales) == 0 {
		return fmt.Errorf("scraper.locales must not be empty")
	}
	for _, raw := range c.Scraper.Locales {
		if _, err := scraper.ParseLocale(raw); err != nil {
			return fmt.Errorf("scraper.locales: %w", err)
		}
	}
	// The pipeline carries attempts as an unsigned count, so a negative value
	// must be rejected here rather than silently wrapped.
	if c.Scraper.RetryAttempts <= 0 {
		return fmt.Errorf("scraper.retry_attempts must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Renderer.Enabled && c.Renderer.MaxParallel <= 0 {
		return fmt.Errorf("renderer.max_parallel must be > 0 when the renderer is enabled")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must be set")
	}
	if c.Artifact.Enabled && c.Artifact.Dir == "" {
		return fmt.Errorf("artifacts.dir must be set when artifacts are enabled")
	}
	return nil
}

// Locales returns the configured locales as typed values. Validate has
// already vetted them.
func (c Config) Locales() []scraper.Locale {
	out := make([]scraper.Locale, 0, len(c.Scraper.Locales))
	for _, raw := range c.Scraper.Locales {
		locale, err := scraper.ParseLocale(raw)
		if err != nil {
			continue
		}
		out = append(out, locale)
	}
	return out
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// Pace converts the per-worker delay into a duration.
func (c Config) Pace() time.Duration {
	return time.Duration(c.Scraper.DelaySeconds) * time.Second
}

// RetryBaseDelay converts the initial backoff into a duration.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}
