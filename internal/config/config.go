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
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
	Images  ImagesConfig  `mapstructure:"images"`
	Export  ExportConfig  `mapstructure:"export"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token"`
}

// ScrapeConfig governs the crawl pipeline defaults.
type ScrapeConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	LimitPages  int    `mapstructure:"limit_pages"`
	Proxy       string `mapstructure:"proxy"`
	Concurrency int    `mapstructure:"concurrency"`
	UserAgent   string `mapstructure:"user_agent"`
}

// HTTPConfig configures per-page fetch retry behavior.
type HTTPConfig struct {
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
	MaxAttempts       int `mapstructure:"max_attempts"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds"`
}

// CacheConfig selects and configures the price cache provider.
type CacheConfig struct {
	Provider string      `mapstructure:"provider"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StoreConfig selects and configures the product store provider.
type StoreConfig struct {
	Provider string         `mapstructure:"provider"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds the SQLite store settings.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds the Postgres store settings.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ImagesConfig sets the local image directory.
type ImagesConfig struct {
	Dir string `mapstructure:"dir"`
}

// ExportConfig sets the run-scoped JSON export path.
type ExportConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHOPCRAWL")
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
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("scrape.base_url", "https://dentalstall.com/shop/")
	v.SetDefault("scrape.limit_pages", 5)
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("scrape.user_agent", "shopcrawl/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_attempts", 3)
	v.SetDefault("http.retry_delay_seconds", 3)
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("store.provider", "sqlite")
	v.SetDefault("store.sqlite.path", "scraped_data.db")
	v.SetDefault("store.postgres.table", "products")
	v.SetDefault("images.dir", "images")
	v.SetDefault("export.path", "scraped_data.json")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.BaseURL == "" {
		return fmt.Errorf("scrape.base_url is required")
	}
	if c.Scrape.LimitPages < 1 {
		return fmt.Errorf("scrape.limit_pages must be >= 1")
	}
	if c.Scrape.Concurrency < 1 {
		return fmt.Errorf("scrape.concurrency must be >= 1")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxAttempts < 1 {
		return fmt.Errorf("http.max_attempts must be >= 1")
	}
	if c.Auth.Enabled && c.Auth.Token == "" {
		return fmt.Errorf("auth.token must be set when auth is enabled")
	}
	switch c.Cache.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache provider: %s", c.Cache.Provider)
	}
	switch c.Store.Provider {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store provider: %s", c.Store.Provider)
	}
	return nil
}

// FetchTimeout converts the per-attempt timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RetryDelay converts the fixed retry delay into a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelaySeconds) * time.Second
}

// RequestTimeout converts the API request budget into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
