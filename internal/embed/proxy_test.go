package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/cachekey"
	"github.com/JakeFAU/embedctl/internal/oembed"
)

type proxyHarness struct {
	registry   *fakeRegistry
	fetcher    *fakeFetcher
	posts      *fakePosts
	transients *fakeTransients
	resolver   *Resolver
}

func newProxyHarness(t *testing.T) *proxyHarness {
	t.Helper()
	h := &proxyHarness{
		registry: &fakeRegistry{providers: map[string]Provider{
			videoURL: {Endpoint: "https://www.youtube.com/oembed", IsRegex: true},
		}},
		fetcher:    &fakeFetcher{data: videoData()},
		posts:      &fakePosts{posts: map[int64]Post{}, urls: map[string]int64{}, contextual: map[int64]oembed.Data{}},
		transients: newFakeTransients(),
	}
	r, err := NewResolver(Deps{
		Providers:  h.registry,
		Fetcher:    h.fetcher,
		Transients: h.transients,
		Posts:      h.posts,
		Handlers:   fakeHandlers{markup: map[string]string{"https://example.com/song.mp3": `[audio src="https://example.com/song.mp3" /]`}},
		Clock:      fixedClock{now: testNow},
	}, Config{CacheTTL: time.Hour, HomeURL: "https://blog.example.org"}, zap.NewNop())
	require.NoError(t, err)
	h.resolver = r
	return h
}

func TestProxyRequestArgsDefaults(t *testing.T) {
	t.Parallel()

	args := ProxyRequest{URL: videoURL, Discover: true}.Args()
	assert.Equal(t, cachekey.ProxyArgs{URL: videoURL, Format: "json", MaxWidth: DefaultProxyWidth, Discover: true}, args)
}

func TestProxyFetchesAndCaches(t *testing.T) {
	t.Parallel()

	h := newProxyHarness(t)
	req := ProxyRequest{URL: videoURL, Discover: true}

	data, err := h.resolver.Proxy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, videoMarkup, data.Str("html"))
	assert.Equal(t, 600, h.fetcher.lastArgs.MaxWidth)
	assert.Equal(t, 1, h.fetcher.calls)

	name := cachekey.ProxyTransient(req.Args())
	require.Contains(t, h.transients.values, name)
	assert.Equal(t, time.Hour, h.transients.ttls[name])

	again, err := h.resolver.Proxy(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, data.Str("title"), again.Str("title"))
	assert.Equal(t, 1, h.fetcher.calls, "second lookup is served from the transient")
}

func TestProxyLocalPostShortCircuits(t *testing.T) {
	t.Parallel()

	h := newProxyHarness(t)
	h.posts.urls["https://blog.example.org/hello-world/"] = 7
	h.posts.contextual[7] = oembed.Data{{Key: "type", Value: "rich"}, {Key: "html", Value: "<blockquote>hi</blockquote>"}}

	data, err := h.resolver.Proxy(context.Background(), ProxyRequest{URL: "https://blog.example.org/hello-world/", Discover: true})
	require.NoError(t, err)
	assert.Equal(t, "<blockquote>hi</blockquote>", data.Str("html"))
	assert.Zero(t, h.fetcher.calls)
	assert.Empty(t, h.transients.values)
}

func TestProxyFallsBackToHandlers(t *testing.T) {
	t.Parallel()

	h := newProxyHarness(t)
	data, err := h.resolver.Proxy(context.Background(), ProxyRequest{URL: "https://example.com/song.mp3", Discover: true})
	require.NoError(t, err)
	assert.Equal(t, `[audio src="https://example.com/song.mp3" /]`, data.Str("html"))
	assert.Equal(t, "Embed Handler", data.Str("provider_name"))
	assert.Equal(t, "https://blog.example.org", data.Str("provider_url"))
}

func TestProxyNotFound(t *testing.T) {
	t.Parallel()

	h := newProxyHarness(t)
	_, err := h.resolver.Proxy(context.Background(), ProxyRequest{URL: "https://unknown.example.com/x", Discover: false})
	require.ErrorIs(t, err, ErrNotFound)

	h.fetcher.err = errors.New("timeout")
	_, err = h.resolver.Proxy(context.Background(), ProxyRequest{URL: videoURL, Discover: true})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, h.transients.values)

	_, err = h.resolver.Proxy(context.Background(), ProxyRequest{})
	require.ErrorIs(t, err, ErrInvalidOptionCombination)
}

func TestProxyIgnoresTransientErrors(t *testing.T) {
	t.Parallel()

	h := newProxyHarness(t)
	h.transients.getErr = errBoom
	data, err := h.resolver.Proxy(context.Background(), ProxyRequest{URL: videoURL, Discover: true})
	require.NoError(t, err)
	assert.Equal(t, videoMarkup, data.Str("html"))
}
