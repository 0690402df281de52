// Package config loads and validates embedctl configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Embed      EmbedConfig      `mapstructure:"embed"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Store      StoreConfig      `mapstructure:"store"`
	DB         DBConfig         `mapstructure:"db"`
	Transients TransientsConfig `mapstructure:"transients"`
	Export     ExportConfig     `mapstructure:"export"`
	Events     EventsConfig     `mapstructure:"events"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Server     ServerConfig     `mapstructure:"server"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// HTTPConfig configures outbound provider and discovery requests.
type HTTPConfig struct {
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	UserAgent      string  `mapstructure:"user_agent"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// EmbedConfig tunes resolution and caching.
type EmbedConfig struct {
	ContentWidth      int           `mapstructure:"content_width"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	ResponseSizeLimit int64         `mapstructure:"response_size_limit"`
	CachePostTypes    []string      `mapstructure:"cache_post_types"`
}

// ProvidersConfig points at an optional provider file.
type ProvidersConfig struct {
	File            string `mapstructure:"file"`
	ReplaceDefaults bool   `mapstructure:"replace_defaults"`
}

// StoreConfig selects the cache store and post resolver backend.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	Fixtures string `mapstructure:"fixtures"`
}

// DBConfig controls access to the content database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	TablePrefix     string        `mapstructure:"table_prefix"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// TransientsConfig selects where expiring values live.
type TransientsConfig struct {
	Driver        string `mapstructure:"driver"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPrefix   string `mapstructure:"redis_prefix"`
}

// ExportConfig sets where cache backups are written.
type ExportConfig struct {
	Driver    string `mapstructure:"driver"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// EventsConfig holds metadata for cache event notifications.
type EventsConfig struct {
	Driver    string `mapstructure:"driver"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig controls the metrics dump written after one-shot commands.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ServerConfig controls the proxy HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EMBEDCTL")
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
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "warn")
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", "embedctl/1.0 (+https://oembed.com)")
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("embed.content_width", 0)
	v.SetDefault("embed.cache_ttl", 24*time.Hour)
	v.SetDefault("embed.response_size_limit", 150*1024)
	v.SetDefault("embed.cache_post_types", []string{"post", "page"})
	v.SetDefault("providers.file", "")
	v.SetDefault("providers.replace_defaults", false)
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.fixtures", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table_prefix", "wp_")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("transients.driver", "db")
	v.SetDefault("transients.redis_addr", "")
	v.SetDefault("transients.redis_password", "")
	v.SetDefault("transients.redis_db", 0)
	v.SetDefault("transients.redis_prefix", "embedctl:transient")
	v.SetDefault("export.driver", "local")
	v.SetDefault("export.base_dir", "exports")
	v.SetDefault("export.gcs_bucket", "")
	v.SetDefault("export.prefix", "oembed")
	v.SetDefault("events.driver", "noop")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "oembed-cache-events")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("server.port", 8080)
}

// Validate enforces required values and reasonable limits.
//
//nolint:gocyclo // flat list of independent checks
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	}
	if c.Embed.ContentWidth < 0 {
		return fmt.Errorf("embed.content_width must be >= 0")
	}
	if c.Embed.ResponseSizeLimit <= 0 {
		return fmt.Errorf("embed.response_size_limit must be > 0")
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("db.dsn must be set when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver must be memory or postgres, got %q", c.Store.Driver)
	}
	switch c.Transients.Driver {
	case "db":
	case "redis":
		if c.Transients.RedisAddr == "" {
			return fmt.Errorf("transients.redis_addr must be set when transients.driver is redis")
		}
	default:
		return fmt.Errorf("transients.driver must be db or redis, got %q", c.Transients.Driver)
	}
	switch c.Export.Driver {
	case "memory":
	case "local":
		if strings.TrimSpace(c.Export.BaseDir) == "" {
			return fmt.Errorf("export.base_dir must be set when export.driver is local")
		}
	case "gcs":
		if c.Export.GCSBucket == "" {
			return fmt.Errorf("export.gcs_bucket must be set when export.driver is gcs")
		}
	default:
		return fmt.Errorf("export.driver must be local, gcs or memory, got %q", c.Export.Driver)
	}
	switch c.Events.Driver {
	case "noop", "memory":
	case "pubsub":
		if c.Events.ProjectID == "" || c.Events.Topic == "" {
			return fmt.Errorf("events.project_id and events.topic must be set when events.driver is pubsub")
		}
	default:
		return fmt.Errorf("events.driver must be noop, memory or pubsub, got %q", c.Events.Driver)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	return nil
}

// RequestTimeout converts the HTTP timeout into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
