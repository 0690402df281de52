// Package embed resolves URLs into embeddable HTML or raw oEmbed payloads and manages
// the legacy embed caches.
//
// The package owns the request/response types and the collaborator interfaces; concrete
// adapters (provider registry, remote fetcher, stores) live in sibling packages.
package embed

import (
	"strings"
	"time"

	"github.com/JakeFAU/embedctl/internal/cachekey"
	"github.com/JakeFAU/embedctl/internal/oembed"
	"github.com/JakeFAU/embedctl/internal/rawcodec"
)

// DefaultResponseSizeLimit bounds discovery page downloads.
const DefaultResponseSizeLimit int64 = 150 * 1024

// UnknownMarker is cached for post-scoped URLs whose fetch failed.
const UnknownMarker = "{{unknown}}"

// Request describes one embed resolution.
type Request struct {
	URL               string
	Width             *int
	Height            *int
	Discover          *bool
	PostID            *int64
	SkipCache         bool
	Raw               bool
	RawFormat         rawcodec.Format
	ResponseSizeLimit *int64
	DoShortcode       bool
	SkipSanitization  bool
	// Format restricts discovery to one link type (json or xml). Empty allows both.
	Format string
	// Refresh skips the cache lookup but still writes the fresh result back.
	Refresh bool
}

// DiscoverEnabled reports the effective discover flag, which defaults to true.
func (r Request) DiscoverEnabled() bool {
	return r.Discover == nil || *r.Discover
}

// Validate checks option combinations without side effects.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return &OptionError{Reason: "A URL is required."}
	}
	if r.RawFormat != "" && !r.Raw {
		return &OptionError{Reason: "The 'raw-format' option can only be used with the 'raw' option."}
	}
	if r.ResponseSizeLimit != nil && !r.DiscoverEnabled() {
		return &OptionError{Reason: "The 'limit-response-size' option can only be used with discovery."}
	}
	if r.ResponseSizeLimit != nil && *r.ResponseSizeLimit <= 0 {
		return &OptionError{Reason: "The 'limit-response-size' option must be a positive number of bytes."}
	}
	if r.Format != "" && r.Format != "json" && r.Format != "xml" {
		return &OptionError{Reason: "The 'format' option must be json or xml."}
	}
	return nil
}

func (r Request) supplied() cachekey.Supplied {
	return cachekey.Supplied{Width: r.Width, Height: r.Height, Discover: r.Discover}
}

func (r Request) matchOptions() MatchOptions {
	limit := DefaultResponseSizeLimit
	if r.ResponseSizeLimit != nil {
		limit = *r.ResponseSizeLimit
	}
	return MatchOptions{
		Discover:          r.DiscoverEnabled(),
		ResponseSizeLimit: limit,
		LinkType:          r.Format,
	}
}

// Source names where a response came from.
type Source string

// Response sources.
const (
	SourceCache    Source = "cache"
	SourceHandler  Source = "handler"
	SourceLocal    Source = "local"
	SourceProvider Source = "provider"
)

// Response is the outcome of a resolution. Exactly one of HTML and Raw is set.
type Response struct {
	HTML     string
	Raw      string
	Data     oembed.Data
	Source   Source
	Provider Provider
	CacheKey string
	Warnings []string
}

// Provider is a matched oEmbed provider.
type Provider struct {
	Pattern    string
	Endpoint   string
	IsRegex    bool
	Discovered bool
}

// MatchOptions tunes provider lookup.
type MatchOptions struct {
	Discover          bool
	ResponseSizeLimit int64
	// LinkType restricts discovery to json or xml links. Empty allows both.
	LinkType string
}

// FetchArgs are passed to the provider endpoint.
type FetchArgs struct {
	MaxWidth  int
	MaxHeight int
}

// HandlerAttrs carries the dimensions an operator supplied explicitly. Zero means unset.
type HandlerAttrs struct {
	Width  int
	Height int
}

// Post is the subset of a content item the embed subsystem reads.
type Post struct {
	ID         int64
	Type       string
	Status     string
	Title      string
	Content    string
	URL        string
	AuthorName string
	Modified   time.Time
}

// Site identifies the local installation for contextual embeds.
type Site struct {
	Name string
	URL  string
}

// CacheKey addresses a cache entry. A PostID of zero selects the global cache posts,
// otherwise the post's meta is used.
type CacheKey struct {
	Suffix string
	PostID int64
}

// CacheEntry is a stored embed result.
type CacheEntry struct {
	Key       CacheKey
	HTML      string
	CreatedAt time.Time
	TTL       time.Duration
	// CachePostID is the oembed_cache post holding the entry, when post-backed.
	CachePostID int64
}

// Fresh reports whether the entry may still be served at now.
func (e CacheEntry) Fresh(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) < e.TTL
}

// Transient is a named expiring option value.
type Transient struct {
	Name      string
	Value     string
	ExpiresAt time.Time
}

// CacheRecord is one stored cache entry of any legacy shape, used for exports.
type CacheRecord struct {
	Shape  string `json:"shape"`
	ID     string `json:"id"`
	PostID int64  `json:"post_id,omitempty"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// Legacy cache shapes.
const (
	ShapePostMeta  = "post_meta"
	ShapeCachePost = "cache_post"
	ShapeTransient = "transient"
)

// SweepReport counts entries removed per legacy shape.
type SweepReport struct {
	PostMeta   int
	CachePosts int
	Transients int
}

// Total is the number of entries removed.
func (r SweepReport) Total() int {
	return r.PostMeta + r.CachePosts + r.Transients
}

// LegacyEntries lists stored entries per shape.
type LegacyEntries struct {
	PostMetaIDs   []int64
	CachePostIDs  []int64
	TransientKeys []string
}
