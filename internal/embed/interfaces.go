package embed

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

// ProviderRegistry matches URLs to oEmbed endpoints.
type ProviderRegistry interface {
	Match(ctx context.Context, url string, opts MatchOptions) (Provider, bool, error)
	List(forceRegex bool) []Provider
}

// Discoverer finds an oEmbed endpoint advertised by the page itself.
type Discoverer interface {
	Discover(ctx context.Context, url string, opts MatchOptions) (string, error)
}

// Fetcher retrieves and decodes a provider's oEmbed payload.
type Fetcher interface {
	Fetch(ctx context.Context, provider Provider, url string, args FetchArgs) (oembed.Data, error)
}

// CacheStore persists rendered embed HTML across the legacy cache shapes.
type CacheStore interface {
	Get(ctx context.Context, key CacheKey) (CacheEntry, bool, error)
	Put(ctx context.Context, key CacheKey, html string, ttl time.Duration) error
	FindCachePostID(ctx context.Context, suffix string) (int64, bool, error)
	DeleteForPost(ctx context.Context, postID int64) (int, error)
	DeleteAll(ctx context.Context) (SweepReport, error)
	ListLegacyEntries(ctx context.Context) (LegacyEntries, error)
	Records(ctx context.Context) ([]CacheRecord, error)
}

// PostCache stores the two post-backed shapes: per-post meta and oembed_cache posts.
type PostCache interface {
	Get(ctx context.Context, key CacheKey) (CacheEntry, bool, error)
	Put(ctx context.Context, key CacheKey, html string, ttl time.Duration) error
	FindCachePostID(ctx context.Context, suffix string) (int64, bool, error)
	DeleteForPost(ctx context.Context, postID int64) (int, error)
	DeletePostCaches(ctx context.Context) (SweepReport, error)
	ListPostCaches(ctx context.Context) (LegacyEntries, error)
	PostRecords(ctx context.Context) ([]CacheRecord, error)
}

// TransientStore stores expiring named values.
type TransientStore interface {
	GetTransient(ctx context.Context, name string) (string, bool, error)
	SetTransient(ctx context.Context, name, value string, ttl time.Duration) error
	DeleteTransients(ctx context.Context, prefix string) (int, error)
	ListTransients(ctx context.Context, prefix string) ([]Transient, error)
}

// PostResolver reads local posts.
type PostResolver interface {
	GetPost(ctx context.Context, id int64) (Post, bool, error)
	ResolveURLToPostID(ctx context.Context, url string) (int64, bool, error)
	GetContextualEmbedData(ctx context.Context, postID int64, width int) (oembed.Data, bool, error)
}

// HandlerRegistry renders URLs that bypass oEmbed, such as direct media links.
type HandlerRegistry interface {
	Render(url string, attrs HandlerAttrs) (string, bool)
}

// Sanitizer filters HTML returned by discovered providers.
type Sanitizer interface {
	Sanitize(html string, data oembed.Data) (string, bool)
}

// ShortcodeRenderer expands shortcode placeholders into HTML.
type ShortcodeRenderer interface {
	Expand(content string) string
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Publisher emits cache events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore persists cache exports.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}
