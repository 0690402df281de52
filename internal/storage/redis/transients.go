// Package redis stores transients in Redis, the object-cache backend for expiring values.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
)

const (
	defaultKeyPrefix = "embedctl:transient"
	scanCount        = 200
)

// Config controls the Redis connection.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// TransientStore implements embed.TransientStore on Redis.
type TransientStore struct {
	client client
	prefix string
	clock  embed.Clock
	logger *zap.Logger
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, clock embed.Clock, logger *zap.Logger) (*TransientStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("transients.redis_addr is required")
	}
	c := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(pingCtx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewWithClient(c, cfg.KeyPrefix, clock, logger), nil
}

// NewWithClient constructs a store from an existing client (primarily for testing).
func NewWithClient(c client, prefix string, clock embed.Clock, logger *zap.Logger) *TransientStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransientStore{client: c, prefix: prefix, clock: clock, logger: logger}
}

// Close releases the client.
func (s *TransientStore) Close() error {
	return s.client.Close()
}

// Ping verifies the server is reachable.
func (s *TransientStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (s *TransientStore) key(name string) string {
	return s.prefix + ":" + name
}

func (s *TransientStore) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

// GetTransient returns a live transient. Redis expires keys itself.
func (s *TransientStore) GetTransient(ctx context.Context, name string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get transient %q: %w", name, err)
	}
	return v, true, nil
}

// SetTransient stores a transient. A non-positive ttl never expires.
func (s *TransientStore) SetTransient(ctx context.Context, name, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(name), value, ttl).Err(); err != nil {
		return fmt.Errorf("set transient %q: %w", name, err)
	}
	return nil
}

// DeleteTransients removes every transient whose name starts with prefix.
func (s *TransientStore) DeleteTransients(ctx context.Context, prefix string) (int, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("delete transients: %w", err)
	}
	return int(n), nil
}

// ListTransients lists transients whose name starts with prefix, sorted by name.
func (s *TransientStore) ListTransients(ctx context.Context, prefix string) ([]embed.Transient, error) {
	keys, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]embed.Transient, 0, len(keys))
	for _, k := range keys {
		v, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get transient %q: %w", k, err)
		}
		t := embed.Transient{Name: strings.TrimPrefix(k, s.prefix+":"), Value: v}
		ttl, err := s.client.PTTL(ctx, k).Result()
		if err != nil {
			s.logger.Debug("Transient TTL lookup failed", zap.String("key", k), zap.Error(err))
		} else if ttl > 0 {
			t.ExpiresAt = now.Add(ttl)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *TransientStore) scan(ctx context.Context, prefix string) ([]string, error) {
	match := escapeGlob(s.key(prefix)) + "*"
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan transients: %w", err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

func escapeGlob(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return r.Replace(s)
}
