// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Store   StoreConfig   `mapstructure:"store"`
	Sources SourcesConfig `mapstructure:"sources"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	UI      UIConfig      `mapstructure:"ui"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig guards the mutating API routes.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the outbound fetcher.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	MaxBodyBytes   int     `mapstructure:"max_body_bytes"`
	PerHostRPS     float64 `mapstructure:"per_host_rps"`
}

// StoreConfig selects and configures the paper store.
type StoreConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig configures the embedded store.
type SQLiteConfig struct {
	Path          string `mapstructure:"path"`
	BusyTimeoutMs int    `mapstructure:"busy_timeout_ms"`
}

// PostgresConfig configures the Postgres store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SourcesConfig holds the upstream endpoints for each adapter.
type SourcesConfig struct {
	ACLBaseURL      string            `mapstructure:"acl_base_url"`
	MLBaseURLs      map[string]string `mapstructure:"ml_base_urls"`
	ArXivBaseURL    string            `mapstructure:"arxiv_base_url"`
	ArXivCategories []string          `mapstructure:"arxiv_categories"`
	ArXivMaxResults int               `mapstructure:"arxiv_max_results"`
}

// IngestConfig governs the background fetch queue.
type IngestConfig struct {
	SeedOnStart       bool     `mapstructure:"seed_on_start"`
	YearFrom          int      `mapstructure:"year_from"`
	YearTo            int      `mapstructure:"year_to"`
	Venues            []string `mapstructure:"venues"`
	RefreshAfterHours int      `mapstructure:"refresh_after_hours"`
}

// UIConfig controls result presentation.
type UIConfig struct {
	PapersPerPage int `mapstructure:"papers_per_page"`
}

// ArchiveConfig selects where raw source payloads are kept.
type ArchiveConfig struct {
	Driver    string `mapstructure:"driver"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// NotifyConfig selects where ingest events are published.
type NotifyConfig struct {
	Driver    string `mapstructure:"driver"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CEREBRO")
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
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "cerebro-bot/0.1")
	v.SetDefault("http.respect_robots", true)
	v.SetDefault("http.max_body_bytes", 64*1024*1024)
	v.SetDefault("http.per_host_rps", 1.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite.path", "papers.db")
	v.SetDefault("store.sqlite.busy_timeout_ms", 5000)
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("sources.acl_base_url", "https://aclanthology.org")
	// Viper lowercases map keys; adapters look venues up lowercased.
	v.SetDefault("sources.ml_base_urls", map[string]any{
		"neurips": "https://neurips.cc",
		"icml":    "https://icml.cc",
		"iclr":    "https://iclr.cc",
	})
	v.SetDefault("sources.arxiv_base_url", "https://export.arxiv.org/api/query")
	v.SetDefault("sources.arxiv_categories", []string{"cs.CL", "cs.LG", "cs.AI"})
	v.SetDefault("sources.arxiv_max_results", 200)
	v.SetDefault("ingest.seed_on_start", true)
	v.SetDefault("ingest.year_from", 2010)
	v.SetDefault("ingest.year_to", 2024)
	v.SetDefault("ingest.refresh_after_hours", 0)
	v.SetDefault("ui.papers_per_page", 10)
	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.prefix", "raw")
	v.SetDefault("notify.driver", "none")
	v.SetDefault("notify.topic", "paper-ingest")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path must be set for the sqlite driver")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	if c.Ingest.YearFrom > c.Ingest.YearTo {
		return fmt.Errorf("ingest.year_from must be <= ingest.year_to")
	}
	if c.UI.PapersPerPage <= 0 {
		return fmt.Errorf("ui.papers_per_page must be > 0")
	}
	switch c.Archive.Driver {
	case "", "none", "memory":
	case "local":
		if c.Archive.BaseDir == "" {
			return fmt.Errorf("archive.base_dir must be set for the local driver")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs driver")
		}
	default:
		return fmt.Errorf("archive.driver %q is not supported", c.Archive.Driver)
	}
	switch c.Notify.Driver {
	case "", "none", "memory":
	case "pubsub":
		if c.Notify.ProjectID == "" || c.Notify.Topic == "" {
			return fmt.Errorf("notify.project_id and notify.topic must be set for the pubsub driver")
		}
	default:
		return fmt.Errorf("notify.driver %q is not supported", c.Notify.Driver)
	}
	return nil
}

// FetchTimeout converts the HTTP timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RefreshAfter is how long a successful run suppresses refetching; zero disables skipping.
func (c Config) RefreshAfter() time.Duration {
	return time.Duration(c.Ingest.RefreshAfterHours) * time.Hour
}
