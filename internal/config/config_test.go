package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Store.Driver != "memory" || cfg.Transients.Driver != "db" {
		t.Fatalf("unexpected drivers: store=%q transients=%q", cfg.Store.Driver, cfg.Transients.Driver)
	}
	if cfg.Embed.CacheTTL != 24*time.Hour {
		t.Fatalf("expected 24h cache ttl, got %v", cfg.Embed.CacheTTL)
	}
	if cfg.Embed.ResponseSizeLimit != 150*1024 {
		t.Fatalf("expected 150 KB response limit, got %d", cfg.Embed.ResponseSizeLimit)
	}
	if len(cfg.Embed.CachePostTypes) != 2 || cfg.Embed.CachePostTypes[0] != "post" {
		t.Fatalf("unexpected cache post types: %v", cfg.Embed.CachePostTypes)
	}
	if cfg.DB.TablePrefix != "wp_" {
		t.Fatalf("expected wp_ table prefix, got %q", cfg.DB.TablePrefix)
	}
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Fatalf("expected 10s request timeout, got %v", got)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
logging:
  development: true
http:
  timeout_seconds: 45
  user_agent: test-agent
embed:
  content_width: 800
  cache_ttl: 2h
  response_size_limit: 4096
  cache_post_types: [post, page, product]
providers:
  file: providers.yaml
  replace_defaults: true
store:
  driver: postgres
db:
  dsn: postgres://localhost/wordpress
  table_prefix: blog_
  max_conns: 8
transients:
  driver: redis
  redis_addr: localhost:6379
  redis_db: 2
export:
  driver: gcs
  gcs_bucket: backups
  prefix: oembed/exports
events:
  driver: pubsub
  project_id: demo
  topic: embeds
server:
  port: 9090
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !cfg.Logging.Development {
		t.Fatalf("expected development logging")
	}
	if cfg.HTTP.UserAgent != "test-agent" || cfg.RequestTimeout() != 45*time.Second {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if cfg.Embed.ContentWidth != 800 || cfg.Embed.CacheTTL != 2*time.Hour || cfg.Embed.ResponseSizeLimit != 4096 {
		t.Fatalf("expected embed overrides to apply: %+v", cfg.Embed)
	}
	if len(cfg.Embed.CachePostTypes) != 3 || cfg.Embed.CachePostTypes[2] != "product" {
		t.Fatalf("expected cache post types to be loaded: %v", cfg.Embed.CachePostTypes)
	}
	if !cfg.Providers.ReplaceDefaults || cfg.Providers.File != "providers.yaml" {
		t.Fatalf("expected provider overrides to apply: %+v", cfg.Providers)
	}
	if cfg.DB.TablePrefix != "blog_" || cfg.DB.MaxConns != 8 {
		t.Fatalf("expected db overrides to apply: %+v", cfg.DB)
	}
	if cfg.Transients.RedisDB != 2 || cfg.Transients.RedisPrefix != "embedctl:transient" {
		t.Fatalf("expected redis settings to merge with defaults: %+v", cfg.Transients)
	}
	if cfg.Export.GCSBucket != "backups" || cfg.Events.Topic != "embeds" {
		t.Fatalf("expected export and events overrides to apply")
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: mysql\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "store.driver") {
		t.Fatalf("expected store.driver error, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		HTTP:       HTTPConfig{TimeoutSeconds: 10},
		Embed:      EmbedConfig{ResponseSizeLimit: 1024},
		Store:      StoreConfig{Driver: "memory"},
		Transients: TransientsConfig{Driver: "db"},
		Export:     ExportConfig{Driver: "memory"},
		Events:     EventsConfig{Driver: "noop"},
		Server:     ServerConfig{Port: 8080},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "negative content width", mutate: func(c *Config) { c.Embed.ContentWidth = -1 }, want: "embed.content_width"},
		{name: "zero response limit", mutate: func(c *Config) { c.Embed.ResponseSizeLimit = 0 }, want: "embed.response_size_limit"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Store.Driver = "postgres" }, want: "db.dsn"},
		{name: "unknown transients driver", mutate: func(c *Config) { c.Transients.Driver = "memcached" }, want: "transients.driver"},
		{name: "redis without addr", mutate: func(c *Config) { c.Transients.Driver = "redis" }, want: "transients.redis_addr"},
		{name: "local export without dir", mutate: func(c *Config) { c.Export.Driver = "local" }, want: "export.base_dir"},
		{name: "gcs export without bucket", mutate: func(c *Config) { c.Export.Driver = "gcs" }, want: "export.gcs_bucket"},
		{name: "pubsub without project", mutate: func(c *Config) { c.Events.Driver = "pubsub" }, want: "events.project_id"},
		{name: "unknown events driver", mutate: func(c *Config) { c.Events.Driver = "kafka" }, want: "events.driver"},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
