package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/elonfeng/flowrank/pkg/source"
	"github.com/elonfeng/flowrank/pkg/workflow"
)

// ErrMissingCredential reports a required credential that is not set.
var ErrMissingCredential = errors.New("missing credential")

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Sources  SourcesConfig  `yaml:"sources"`
	Trend    TrendConfig    `yaml:"trend"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// ScheduleConfig configures the ingestion interval of the run command.
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
}

// ParseInterval returns the ingestion interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// IngestConfig configures ingestion jobs.
type IngestConfig struct {
	Countries   []string `yaml:"countries"`
	Concurrency int      `yaml:"concurrency"`
	Timeout     string   `yaml:"timeout"` // per network call
}

// ParseTimeout returns the per-call timeout as time.Duration.
func (i IngestConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(i.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// SourcesConfig holds configuration for all platforms.
type SourcesConfig struct {
	YouTube YouTubeConfig `yaml:"youtube"`
	Forum   ForumConfig   `yaml:"forum"`
}

// YouTubeConfig for the YouTube adapter.
type YouTubeConfig struct {
	Enabled    bool     `yaml:"enabled"`
	APIKey     string   `yaml:"api_key"`
	Queries    []string `yaml:"queries"`
	Channels   []string `yaml:"channels"`
	MaxResults int      `yaml:"max_results"`
}

// ForumConfig for the Discourse forum adapter.
type ForumConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	Limit   int    `yaml:"limit"`
}

// TrendConfig configures the Google Trends classifier.
type TrendConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Language  string `yaml:"language"`
	TZOffset  int    `yaml:"tz_offset"`
	Timeframe string `yaml:"timeframe"`
	CacheTTL  string `yaml:"cache_ttl"`
	RedisAddr string `yaml:"redis_addr"` // empty = in-process cache
}

// ParseCacheTTL returns the trend cache TTL as time.Duration.
func (t TrendConfig) ParseCacheTTL() time.Duration {
	d, err := time.ParseDuration(t.CacheTTL)
	if err != nil || d < 0 {
		return 12 * time.Hour
	}
	return d
}

// AlertsConfig configures post-ingestion summaries.
type AlertsConfig struct {
	Top     int           `yaml:"top"`
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./flowrank.db"},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Schedule: ScheduleConfig{Interval: "6h"},
		Ingest: IngestConfig{
			Countries:   []string{"US", "IN"},
			Concurrency: 1,
			Timeout:     "10s",
		},
		Sources: SourcesConfig{
			YouTube: YouTubeConfig{
				Enabled:    true,
				Queries:    append([]string(nil), source.DefaultYouTubeQueries...),
				MaxResults: 20,
			},
			Forum: ForumConfig{
				Enabled: true,
				BaseURL: "https://community.n8n.io",
				Limit:   50,
			},
		},
		Trend: TrendConfig{
			Enabled:   true,
			Language:  "en-US",
			TZOffset:  360,
			Timeframe: "today 3-m",
			CacheTTL:  "12h",
		},
		Alerts: AlertsConfig{Top: 5},
		Server: ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file, a .env file in the working
// directory and environment variables, in increasing precedence.
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

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)
	cfg.Ingest.Countries = NormalizeCountries(cfg.Ingest.Countries)
	return cfg, nil
}

// NormalizeCountries trims and upper-cases country codes, dropping blanks and
// duplicates. Stored identity keys and query filters both use this form.
func NormalizeCountries(countries []string) []string {
	var (
		out  []string
		seen = make(map[string]bool, len(countries))
	)
	for _, c := range countries {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// Validate reports configuration that makes ingestion impossible.
func (c *Config) Validate() error {
	if c.Sources.YouTube.Enabled && strings.TrimSpace(c.Sources.YouTube.APIKey) == "" {
		return fmt.Errorf("%w: YOUTUBE_API_KEY is required when the youtube source is enabled", ErrMissingCredential)
	}
	if len(c.Ingest.Countries) == 0 {
		return errors.New("ingest.countries must not be empty")
	}
	if !c.Sources.YouTube.Enabled && !c.Sources.Forum.Enabled {
		return errors.New("no sources enabled")
	}
	return nil
}

// Platforms returns the enabled platforms in fixed order.
func (c *Config) Platforms() []workflow.Platform {
	var platforms []workflow.Platform
	if c.Sources.YouTube.Enabled {
		platforms = append(platforms, workflow.PlatformYouTube)
	}
	if c.Sources.Forum.Enabled {
		platforms = append(platforms, workflow.PlatformForum)
	}
	return platforms
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FLOWRANK_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FLOWRANK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FLOWRANK_COUNTRIES"); v != "" {
		cfg.Ingest.Countries = strings.Split(v, ",")
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.YouTube.APIKey = v
	}
	if v := os.Getenv("FLOWRANK_REDIS_ADDR"); v != "" {
		cfg.Trend.RedisAddr = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
