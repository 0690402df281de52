package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/cachekey"
	"github.com/JakeFAU/embedctl/internal/metrics"
	"github.com/JakeFAU/embedctl/internal/oembed"
	"github.com/JakeFAU/embedctl/internal/rawcodec"
)

// Config tunes the resolver.
type Config struct {
	// ContentWidth feeds the default embed dimensions. Zero selects 500.
	ContentWidth int
	// CacheTTL is how long cached HTML stays fresh. Zero or less disables reuse.
	CacheTTL time.Duration
	// ResponseSizeLimit bounds discovery downloads when a request sets no limit.
	// Zero selects DefaultResponseSizeLimit.
	ResponseSizeLimit int64
	// HomeURL is reported as provider_url for proxy responses rendered by a handler.
	HomeURL string
}

// Deps are the resolver collaborators. Providers and Fetcher are required.
type Deps struct {
	Providers  ProviderRegistry
	Fetcher    Fetcher
	Cache      CacheStore
	Transients TransientStore
	Posts      PostResolver
	Handlers   HandlerRegistry
	Sanitizer  Sanitizer
	Shortcodes ShortcodeRenderer
	Codec      *rawcodec.Codec
	Clock      Clock
}

// Resolver turns embed requests into HTML or raw payloads.
type Resolver struct {
	providers  ProviderRegistry
	fetcher    Fetcher
	cache      CacheStore
	transients TransientStore
	posts      PostResolver
	handlers   HandlerRegistry
	sanitizer  Sanitizer
	shortcodes ShortcodeRenderer
	codec      *rawcodec.Codec
	clock      Clock
	keys       cachekey.Policy
	ttl        time.Duration
	homeURL    string
	sizeLimit  int64
	logger     *zap.Logger
}

// NewResolver wires a Resolver.
func NewResolver(deps Deps, cfg Config, logger *zap.Logger) (*Resolver, error) {
	if deps.Providers == nil {
		return nil, errors.New("provider registry is required")
	}
	if deps.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		providers:  deps.Providers,
		fetcher:    deps.Fetcher,
		cache:      deps.Cache,
		transients: deps.Transients,
		posts:      deps.Posts,
		handlers:   deps.Handlers,
		sanitizer:  deps.Sanitizer,
		shortcodes: deps.Shortcodes,
		codec:      deps.Codec,
		clock:      deps.Clock,
		keys:       cachekey.Policy{ContentWidth: cfg.ContentWidth},
		ttl:        cfg.CacheTTL,
		homeURL:    cfg.HomeURL,
		sizeLimit:  cfg.ResponseSizeLimit,
		logger:     logger,
	}
	if r.codec == nil {
		r.codec = rawcodec.New()
	}
	if r.clock == nil {
		r.clock = utcClock{}
	}
	return r, nil
}

// KeyPolicy returns the cache key policy in use.
func (r *Resolver) KeyPolicy() cachekey.Policy {
	return r.keys
}

// Resolve runs one resolution.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}
	var resp Response
	postID := r.bindPost(ctx, req, &resp)

	var err error
	if req.Raw {
		resp, err = r.resolveRaw(ctx, req, resp)
	} else {
		resp, err = r.resolveHTML(ctx, req, postID, resp)
	}
	if err != nil {
		metrics.ObserveResolution("", outcomeOf(err))
		return Response{}, err
	}
	metrics.ObserveResolution(string(resp.Source), "ok")
	return resp, nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrNoProviderFound):
		return "no_provider"
	case errors.Is(err, ErrFetchFailed):
		return "fetch_failed"
	default:
		return "error"
	}
}

// bindPost returns the post id that scopes caching, or zero.
func (r *Resolver) bindPost(ctx context.Context, req Request, resp *Response) int64 {
	if req.PostID == nil {
		return 0
	}
	id := *req.PostID
	missing := (&PostError{ID: id}).Error()
	if r.posts == nil {
		resp.Warnings = append(resp.Warnings, missing)
		return 0
	}
	post, ok, err := r.posts.GetPost(ctx, id)
	if err != nil {
		r.logger.Warn("Post lookup failed", zap.Int64("post_id", id), zap.Error(err))
	}
	if err != nil || !ok {
		resp.Warnings = append(resp.Warnings, missing)
		return 0
	}
	return post.ID
}

func (r *Resolver) resolveRaw(ctx context.Context, req Request, resp Response) (Response, error) {
	data, ok := r.localData(ctx, req)
	if ok {
		resp.Source = SourceLocal
	} else {
		provider, err := r.matchProvider(ctx, req)
		if err != nil {
			return Response{}, err
		}
		data, err = r.fetch(ctx, provider, req)
		if err != nil {
			return Response{}, err
		}
		resp.Source = SourceProvider
		resp.Provider = provider
	}

	format := req.RawFormat
	if format == "" {
		format = rawcodec.FormatJSON
	}
	out, err := r.codec.Encode(data, format)
	if err != nil {
		return Response{}, fmt.Errorf("encode raw output: %w", err)
	}
	resp.Raw = out
	resp.Data = data
	return resp, nil
}

func (r *Resolver) resolveHTML(ctx context.Context, req Request, postID int64, resp Response) (Response, error) {
	if r.handlers != nil {
		if markup, ok := r.handlers.Render(req.URL, handlerAttrs(req)); ok {
			resp.HTML = r.finish(markup, req)
			resp.Source = SourceHandler
			return resp, nil
		}
	}

	candidates := r.keys.Candidates(req.URL, req.supplied())
	resp.CacheKey = candidates[0]
	if !req.SkipCache && !req.Refresh {
		if entry, ok := r.lookup(ctx, candidates, postID); ok {
			if entry.HTML == UnknownMarker {
				return Response{}, &FetchError{Cause: errors.New("cached fetch failure")}
			}
			resp.HTML = r.finish(entry.HTML, req)
			resp.Source = SourceCache
			resp.CacheKey = entry.Key.Suffix
			return resp, nil
		}
	}

	if data, ok := r.localData(ctx, req); ok {
		if markup, ok := DataToHTML(data, req.URL); ok {
			resp.HTML = r.finish(markup, req)
			resp.Data = data
			resp.Source = SourceLocal
			return resp, nil
		}
		r.logger.Debug("Local embed data is not renderable", zap.String("url", req.URL), zap.String("type", data.Str("type")))
	}

	provider, err := r.matchProvider(ctx, req)
	if err != nil {
		return Response{}, err
	}
	markup, data, err := r.fetchHTML(ctx, provider, req)
	if err != nil {
		if postID > 0 && !req.SkipCache {
			r.store(ctx, CacheKey{Suffix: resp.CacheKey, PostID: postID}, UnknownMarker)
		}
		return Response{}, err
	}
	if !req.SkipCache {
		r.store(ctx, CacheKey{Suffix: resp.CacheKey, PostID: postID}, markup)
	}
	resp.HTML = r.finish(markup, req)
	resp.Data = data
	resp.Source = SourceProvider
	resp.Provider = provider
	return resp, nil
}

func (r *Resolver) lookup(ctx context.Context, candidates []string, postID int64) (CacheEntry, bool) {
	if r.cache == nil {
		return CacheEntry{}, false
	}
	now := r.clock.Now()
	for _, suffix := range candidates {
		entry, ok, err := r.cache.Get(ctx, CacheKey{Suffix: suffix, PostID: postID})
		if err != nil {
			r.logger.Warn("Cache lookup failed", zap.String("key", suffix), zap.Error(err))
			metrics.ObserveCacheLookup("error")
			return CacheEntry{}, false
		}
		if !ok {
			continue
		}
		entry.Key = CacheKey{Suffix: suffix, PostID: postID}
		entry.TTL = r.ttl
		if !entry.Fresh(now) {
			metrics.ObserveCacheLookup("stale")
			r.logger.Debug("Cached embed is stale", zap.String("key", suffix), zap.Time("created_at", entry.CreatedAt))
			continue
		}
		metrics.ObserveCacheLookup("hit")
		return entry, true
	}
	metrics.ObserveCacheLookup("miss")
	return CacheEntry{}, false
}

func (r *Resolver) store(ctx context.Context, key CacheKey, markup string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Put(ctx, key, markup, r.ttl); err != nil {
		r.logger.Warn("Cache write failed", zap.String("key", key.Suffix), zap.Int64("post_id", key.PostID), zap.Error(err))
	}
}

// localData short-circuits URLs that point at a local post.
func (r *Resolver) localData(ctx context.Context, req Request) (oembed.Data, bool) {
	if r.posts == nil {
		return nil, false
	}
	id, ok, err := r.posts.ResolveURLToPostID(ctx, req.URL)
	if err != nil {
		r.logger.Debug("Local URL lookup failed", zap.String("url", req.URL), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	width := r.effectiveWidth(req)
	data, ok, err := r.posts.GetContextualEmbedData(ctx, id, width)
	if err != nil {
		r.logger.Debug("Contextual embed lookup failed", zap.Int64("post_id", id), zap.Error(err))
		return nil, false
	}
	return data, ok
}

func (r *Resolver) matchProvider(ctx context.Context, req Request) (Provider, error) {
	opts := req.matchOptions()
	if req.ResponseSizeLimit == nil && r.sizeLimit > 0 {
		opts.ResponseSizeLimit = r.sizeLimit
	}
	provider, ok, err := r.providers.Match(ctx, req.URL, opts)
	if err != nil {
		r.logger.Debug("Provider lookup failed", zap.String("url", req.URL), zap.Error(err))
	}
	if err != nil || !ok {
		return Provider{}, &NoProviderError{Discover: opts.Discover}
	}
	return provider, nil
}

func (r *Resolver) fetch(ctx context.Context, provider Provider, req Request) (oembed.Data, error) {
	args := FetchArgs{MaxWidth: r.effectiveWidth(req), MaxHeight: r.effectiveHeight(req)}
	data, err := r.fetcher.Fetch(ctx, provider, req.URL, args)
	if err != nil {
		r.logger.Info("oEmbed fetch failed", zap.String("url", req.URL), zap.String("endpoint", provider.Endpoint), zap.Error(err))
		return nil, &FetchError{Cause: err}
	}
	if len(data) == 0 {
		return nil, &FetchError{Cause: errors.New("empty payload")}
	}
	return data, nil
}

func (r *Resolver) fetchHTML(ctx context.Context, provider Provider, req Request) (string, oembed.Data, error) {
	data, err := r.fetch(ctx, provider, req)
	if err != nil {
		return "", nil, err
	}
	markup, ok := DataToHTML(data, req.URL)
	if !ok {
		return "", nil, &FetchError{Cause: fmt.Errorf("unsupported oembed type %q", data.Str("type"))}
	}
	if provider.Discovered && !req.SkipSanitization && r.sanitizer != nil {
		switch data.Str("type") {
		case "rich", "video":
			clean, ok := r.sanitizer.Sanitize(markup, data)
			if !ok {
				return "", nil, &FetchError{Cause: errors.New("discovered markup rejected by sanitizer")}
			}
			markup = clean
		}
	}
	return markup, data, nil
}

func (r *Resolver) finish(markup string, req Request) string {
	if req.DoShortcode && r.shortcodes != nil {
		return r.shortcodes.Expand(markup)
	}
	return markup
}

func (r *Resolver) effectiveWidth(req Request) int {
	if req.Width != nil {
		return *req.Width
	}
	width, _ := cachekey.DefaultSize(r.keys.ContentWidth)
	return width
}

func (r *Resolver) effectiveHeight(req Request) int {
	if req.Height != nil {
		return *req.Height
	}
	_, height := cachekey.DefaultSize(r.keys.ContentWidth)
	return height
}

func handlerAttrs(req Request) HandlerAttrs {
	var attrs HandlerAttrs
	if req.Width != nil {
		attrs.Width = *req.Width
	}
	if req.Height != nil {
		attrs.Height = *req.Height
	}
	return attrs
}

type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}
