package embed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/cachekey"
	"github.com/JakeFAU/embedctl/internal/metrics"
	"github.com/JakeFAU/embedctl/internal/oembed"
)

// DefaultProxyWidth is the maxwidth applied to proxy requests that omit it.
const DefaultProxyWidth = 600

// ErrNotFound is returned by Proxy when nothing could embed the URL.
var ErrNotFound = errors.New("Not Found") //nolint:staticcheck // returned verbatim to proxy clients

// ProxyRequest is one oEmbed proxy lookup.
type ProxyRequest struct {
	URL       string
	Format    string
	MaxWidth  int
	MaxHeight *int
	Discover  bool
}

// Args returns the arguments that key the proxy cache, with defaults applied.
func (p ProxyRequest) Args() cachekey.ProxyArgs {
	args := cachekey.ProxyArgs{
		URL:       p.URL,
		Format:    p.Format,
		MaxWidth:  p.MaxWidth,
		MaxHeight: p.MaxHeight,
		Discover:  p.Discover,
	}
	if args.Format == "" {
		args.Format = "json"
	}
	if args.MaxWidth <= 0 {
		args.MaxWidth = DefaultProxyWidth
	}
	return args
}

// Proxy returns the oEmbed payload for a URL with its html field rendered. Results are
// cached in a transient named after the request arguments. Lookup order: transient, local
// post, provider, then embed handlers.
func (r *Resolver) Proxy(ctx context.Context, req ProxyRequest) (oembed.Data, error) {
	if req.URL == "" {
		return nil, &OptionError{Reason: "A URL is required."}
	}
	args := req.Args()
	name := cachekey.ProxyTransient(args)

	if data, ok := r.cachedProxy(ctx, name); ok {
		metrics.ObserveResolution(string(SourceCache), "ok")
		return data, nil
	}

	width := args.MaxWidth
	discover := args.Discover
	embedReq := Request{URL: args.URL, Width: &width, Height: args.MaxHeight, Discover: &discover}

	if data, ok := r.localData(ctx, embedReq); ok {
		metrics.ObserveResolution(string(SourceLocal), "ok")
		return data, nil
	}

	data, err := r.proxyProvider(ctx, embedReq)
	if err == nil {
		r.storeProxy(ctx, name, data)
		metrics.ObserveResolution(string(SourceProvider), "ok")
		return data, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("proxy %s: %w", args.URL, ctx.Err())
	}

	if r.handlers != nil {
		if markup, ok := r.handlers.Render(args.URL, handlerAttrs(embedReq)); ok {
			metrics.ObserveResolution(string(SourceHandler), "ok")
			return oembed.Data{
				{Key: "html", Value: markup},
				{Key: "provider_name", Value: "Embed Handler"},
				{Key: "provider_url", Value: r.homeURL},
			}, nil
		}
	}
	metrics.ObserveResolution("", outcomeOf(err))
	r.logger.Debug("Proxy lookup failed", zap.String("url", args.URL), zap.Error(err))
	return nil, ErrNotFound
}

func (r *Resolver) proxyProvider(ctx context.Context, req Request) (oembed.Data, error) {
	provider, err := r.matchProvider(ctx, req)
	if err != nil {
		return nil, err
	}
	markup, data, err := r.fetchHTML(ctx, provider, req)
	if err != nil {
		return nil, err
	}
	return data.Set("html", markup), nil
}

func (r *Resolver) cachedProxy(ctx context.Context, name string) (oembed.Data, bool) {
	if r.transients == nil {
		return nil, false
	}
	raw, ok, err := r.transients.GetTransient(ctx, name)
	if err != nil {
		r.logger.Warn("Transient lookup failed", zap.String("name", name), zap.Error(err))
		metrics.ObserveCacheLookup("error")
		return nil, false
	}
	if !ok || raw == "" {
		metrics.ObserveCacheLookup("miss")
		return nil, false
	}
	data, err := oembed.ParseJSON([]byte(raw))
	if err != nil {
		r.logger.Warn("Cached proxy payload is corrupt", zap.String("name", name), zap.Error(err))
		metrics.ObserveCacheLookup("error")
		return nil, false
	}
	metrics.ObserveCacheLookup("hit")
	return data, true
}

func (r *Resolver) storeProxy(ctx context.Context, name string, data oembed.Data) {
	if r.transients == nil || r.ttl <= 0 {
		return
	}
	raw, err := data.MarshalJSON()
	if err != nil {
		r.logger.Warn("Proxy payload encode failed", zap.String("name", name), zap.Error(err))
		return
	}
	if err := r.transients.SetTransient(ctx, name, string(raw), r.ttl); err != nil {
		r.logger.Warn("Transient write failed", zap.String("name", name), zap.Error(err))
	}
}
