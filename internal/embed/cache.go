package embed

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// TransientPrefix is the name prefix of transient-backed embed caches.
const TransientPrefix = "oembed_"

// Cache joins the post-backed shapes with a transient backend into one CacheStore.
type Cache struct {
	posts      PostCache
	transients TransientStore
}

// NewCache builds a Cache. transients may be nil when no transient backend is configured.
func NewCache(posts PostCache, transients TransientStore) *Cache {
	return &Cache{posts: posts, transients: transients}
}

// Transients returns the transient backend, or nil.
func (c *Cache) Transients() TransientStore {
	return c.transients
}

// Get reads an entry from the post-backed shapes.
func (c *Cache) Get(ctx context.Context, key CacheKey) (CacheEntry, bool, error) {
	return c.posts.Get(ctx, key)
}

// Put writes an entry to the post-backed shapes.
func (c *Cache) Put(ctx context.Context, key CacheKey, html string, ttl time.Duration) error {
	return c.posts.Put(ctx, key, html, ttl)
}

// FindCachePostID returns the oembed_cache post holding suffix.
func (c *Cache) FindCachePostID(ctx context.Context, suffix string) (int64, bool, error) {
	return c.posts.FindCachePostID(ctx, suffix)
}

// DeleteForPost removes a post's cached embeds.
func (c *Cache) DeleteForPost(ctx context.Context, postID int64) (int, error) {
	return c.posts.DeleteForPost(ctx, postID)
}

// DeleteAll sweeps every shape.
func (c *Cache) DeleteAll(ctx context.Context) (SweepReport, error) {
	report, err := c.posts.DeletePostCaches(ctx)
	if err != nil {
		return SweepReport{}, fmt.Errorf("delete post caches: %w", err)
	}
	if c.transients == nil {
		return report, nil
	}
	n, err := c.transients.DeleteTransients(ctx, TransientPrefix)
	if err != nil {
		return report, fmt.Errorf("delete transients: %w", err)
	}
	report.Transients = n
	return report, nil
}

// ListLegacyEntries lists every stored entry.
func (c *Cache) ListLegacyEntries(ctx context.Context) (LegacyEntries, error) {
	entries, err := c.posts.ListPostCaches(ctx)
	if err != nil {
		return LegacyEntries{}, fmt.Errorf("list post caches: %w", err)
	}
	if c.transients == nil {
		return entries, nil
	}
	transients, err := c.transients.ListTransients(ctx, TransientPrefix)
	if err != nil {
		return LegacyEntries{}, fmt.Errorf("list transients: %w", err)
	}
	for _, t := range transients {
		entries.TransientKeys = append(entries.TransientKeys, t.Name)
	}
	return entries, nil
}

// Records returns every stored entry with its payload.
func (c *Cache) Records(ctx context.Context) ([]CacheRecord, error) {
	records, err := c.posts.PostRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list post records: %w", err)
	}
	if c.transients == nil {
		return records, nil
	}
	transients, err := c.transients.ListTransients(ctx, TransientPrefix)
	if err != nil {
		return nil, fmt.Errorf("list transients: %w", err)
	}
	for _, t := range transients {
		records = append(records, CacheRecord{
			Shape: ShapeTransient,
			ID:    t.Name,
			Key:   strings.TrimPrefix(t.Name, TransientPrefix),
			Value: t.Value,
		})
	}
	return records, nil
}
