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
	"github.com/JakeFAU/embedctl/internal/rawcodec"
)

const (
	videoURL    = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	videoMarkup = `<iframe width="500" height="281" src="https://www.youtube.com/embed/dQw4w9WgXcQ"></iframe>`
)

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func videoData() oembed.Data {
	return oembed.Data{
		{Key: "type", Value: "video"},
		{Key: "title", Value: "Never Gonna Give You Up"},
		{Key: "width", Value: float64(500)},
		{Key: "height", Value: float64(281)},
		{Key: "html", Value: videoMarkup},
	}
}

type harness struct {
	registry  *fakeRegistry
	fetcher   *fakeFetcher
	cache     *fakeCache
	posts     *fakePosts
	sanitizer *fakeSanitizer
	resolver  *Resolver
}

func newHarness(t *testing.T, ttl time.Duration) *harness {
	t.Helper()
	h := &harness{
		registry: &fakeRegistry{providers: map[string]Provider{
			videoURL: {Pattern: "#https?://((m|www)\\.)?youtube\\.com/watch.*#i", Endpoint: "https://www.youtube.com/oembed", IsRegex: true},
		}},
		fetcher:   &fakeFetcher{data: videoData()},
		cache:     newFakeCache(),
		posts:     &fakePosts{posts: map[int64]Post{}, urls: map[string]int64{}, contextual: map[int64]oembed.Data{}},
		sanitizer: &fakeSanitizer{ok: true},
	}
	r, err := NewResolver(Deps{
		Providers:  h.registry,
		Fetcher:    h.fetcher,
		Cache:      h.cache,
		Posts:      h.posts,
		Handlers:   fakeHandlers{markup: map[string]string{"https://example.com/song.mp3": `[audio src="https://example.com/song.mp3" /]`}},
		Sanitizer:  h.sanitizer,
		Shortcodes: fakeShortcodes{},
		Clock:      fixedClock{now: testNow},
	}, Config{CacheTTL: ttl}, zap.NewNop())
	require.NoError(t, err)
	h.resolver = r
	return h
}

func ptr[T any](v T) *T { return &v }

func TestNewResolverRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := NewResolver(Deps{Fetcher: &fakeFetcher{}}, Config{}, nil)
	require.Error(t, err)
	_, err = NewResolver(Deps{Providers: &fakeRegistry{}}, Config{}, nil)
	require.Error(t, err)
}

func TestResolveValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty url", req: Request{}},
		{name: "raw format without raw", req: Request{URL: videoURL, RawFormat: rawcodec.FormatXML}},
		{name: "size limit without discovery", req: Request{URL: videoURL, Discover: ptr(false), ResponseSizeLimit: ptr(int64(1024))}},
		{name: "bad size limit", req: Request{URL: videoURL, ResponseSizeLimit: ptr(int64(0))}},
		{name: "bad link type", req: Request{URL: videoURL, Format: "yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, time.Hour)
			_, err := h.resolver.Resolve(context.Background(), tt.req)
			require.ErrorIs(t, err, ErrInvalidOptionCombination)
			assert.Zero(t, h.registry.calls)
			assert.Zero(t, h.fetcher.calls)
			assert.Zero(t, h.cache.gets)
			assert.Empty(t, h.cache.puts)
		})
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 24*time.Hour)
	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)

	assert.Equal(t, videoMarkup, resp.HTML)
	assert.Equal(t, SourceProvider, resp.Source)
	assert.Equal(t, "https://www.youtube.com/oembed", resp.Provider.Endpoint)
	assert.Equal(t, FetchArgs{MaxWidth: 500, MaxHeight: 750}, h.fetcher.lastArgs)
	assert.True(t, h.registry.lastOpts.Discover)
	assert.Equal(t, DefaultResponseSizeLimit, h.registry.lastOpts.ResponseSizeLimit)

	require.Len(t, h.cache.puts, 1)
	assert.Equal(t, CacheKey{Suffix: "cc2d7cb3bed61ed522814a412e9d5d36"}, h.cache.puts[0].Key)
	assert.Equal(t, videoMarkup, h.cache.puts[0].HTML)
	assert.Equal(t, 24*time.Hour, h.cache.puts[0].TTL)
}

func TestResolveServesFreshCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 24*time.Hour)
	key := CacheKey{Suffix: "cc2d7cb3bed61ed522814a412e9d5d36"}
	h.cache.entries[key] = CacheEntry{HTML: "<p>cached</p>", CreatedAt: testNow.Add(-time.Hour)}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, "<p>cached</p>", resp.HTML)
	assert.Equal(t, SourceCache, resp.Source)
	assert.Zero(t, h.fetcher.calls)
	assert.Empty(t, h.cache.puts)
}

func TestResolveCacheCandidatesIncludeDiscoverVariants(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 24*time.Hour)
	h.cache.entries[CacheKey{Suffix: "79a4dc9f88ad0191882e8b0ec9b6f8b4"}] = CacheEntry{HTML: "<p>discover off</p>", CreatedAt: testNow}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, "<p>discover off</p>", resp.HTML)
	assert.Equal(t, "79a4dc9f88ad0191882e8b0ec9b6f8b4", resp.CacheKey)
	assert.Equal(t, 3, h.cache.gets)
}

func TestResolveRefetchesStaleCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	key := CacheKey{Suffix: "cc2d7cb3bed61ed522814a412e9d5d36"}
	h.cache.entries[key] = CacheEntry{HTML: "<p>old</p>", CreatedAt: testNow.Add(-2 * time.Hour)}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, videoMarkup, resp.HTML)
	assert.Equal(t, 1, h.fetcher.calls)
	require.Len(t, h.cache.puts, 1)
}

func TestResolveZeroTTLNeverServesCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 0)
	h.cache.entries[CacheKey{Suffix: "cc2d7cb3bed61ed522814a412e9d5d36"}] = CacheEntry{HTML: "<p>old</p>", CreatedAt: testNow}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, resp.Source)
	require.Len(t, h.cache.puts, 1)
	assert.Zero(t, h.cache.puts[0].TTL)
}

func TestResolveSkipCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.cache.entries[CacheKey{Suffix: "cc2d7cb3bed61ed522814a412e9d5d36"}] = CacheEntry{HTML: "<p>cached</p>", CreatedAt: testNow}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL, SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, videoMarkup, resp.HTML)
	assert.Zero(t, h.cache.gets)
	assert.Empty(t, h.cache.puts)
}

func TestResolveCacheErrorFallsThrough(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.cache.getErr = errBoom

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, resp.Source)
}

func TestResolveRawBypassesCache(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.cache.entries[CacheKey{Suffix: "cc2d7cb3bed61ed522814a412e9d5d36"}] = CacheEntry{HTML: "<p>cached</p>", CreatedAt: testNow}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL, Raw: true})
	require.NoError(t, err)
	assert.Zero(t, h.cache.gets)
	assert.Empty(t, h.cache.puts)
	assert.Equal(t, 1, h.fetcher.calls)
	assert.Equal(t, `{"type":"video","title":"Never Gonna Give You Up","width":500,"height":281,"html":"`+
		`<iframe width=\"500\" height=\"281\" src=\"https://www.youtube.com/embed/dQw4w9WgXcQ\"></iframe>"}`, resp.Raw)
	assert.Empty(t, resp.HTML)

	xmlResp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL, Raw: true, RawFormat: rawcodec.FormatXML})
	require.NoError(t, err)
	assert.Contains(t, xmlResp.Raw, "<oembed><type>video</type>")
	assert.Zero(t, h.cache.gets)
}

func TestResolveNoProviderMessages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	_, err := h.resolver.Resolve(context.Background(), Request{URL: "https://example.com/x", Raw: true, RawFormat: rawcodec.FormatXML})
	require.ErrorIs(t, err, ErrNoProviderFound)
	assert.Equal(t, "No oEmbed provider found for given URL. Maybe try discovery?", err.Error())

	_, err = h.resolver.Resolve(context.Background(), Request{URL: "https://example.com/x", Discover: ptr(false)})
	require.ErrorIs(t, err, ErrNoProviderFound)
	assert.Equal(t, "No oEmbed provider found for given URL.", err.Error())
	assert.False(t, h.registry.lastOpts.Discover)

	h.registry.err = errBoom
	_, err = h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.ErrorIs(t, err, ErrNoProviderFound)
}

func TestResolveFetchFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.fetcher.err = errBoom

	_, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.ErrorIs(t, err, ErrFetchFailed)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "There was an error fetching the oEmbed data.", err.Error())
	assert.Empty(t, h.cache.puts, "failures without a post are not cached")
}

func TestResolveLinkType(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.fetcher.data = oembed.Data{{Key: "type", Value: "link"}, {Key: "title", Value: "Rick Astley"}}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, `<a href="`+videoURL+`">Rick Astley</a>`, resp.HTML)

	h.fetcher.data = oembed.Data{{Key: "type", Value: "link"}}
	_, err = h.resolver.Resolve(context.Background(), Request{URL: videoURL, SkipCache: true})
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestResolvePostBinding(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.posts.posts[7] = Post{ID: 7, Type: "post", Status: "publish"}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL, PostID: ptr(int64(7))})
	require.NoError(t, err)
	assert.Empty(t, resp.Warnings)
	require.Len(t, h.cache.puts, 1)
	assert.Equal(t, int64(7), h.cache.puts[0].Key.PostID)

	resp, err = h.resolver.Resolve(context.Background(), Request{URL: videoURL, PostID: ptr(int64(99))})
	require.NoError(t, err)
	assert.Equal(t, []string{"Post 99 does not exist!"}, resp.Warnings)
	require.Len(t, h.cache.puts, 2)
	assert.Zero(t, h.cache.puts[1].Key.PostID)
}

func TestResolvePostScopedFailureIsRemembered(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.posts.posts[7] = Post{ID: 7, Type: "post", Status: "publish"}
	h.fetcher.err = errBoom

	_, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL, PostID: ptr(int64(7))})
	require.ErrorIs(t, err, ErrFetchFailed)
	require.Len(t, h.cache.puts, 1)
	assert.Equal(t, UnknownMarker, h.cache.puts[0].HTML)

	h.cache.entries[h.cache.puts[0].Key] = CacheEntry{HTML: UnknownMarker, CreatedAt: testNow}
	h.fetcher.err = nil
	_, err = h.resolver.Resolve(context.Background(), Request{URL: videoURL, PostID: ptr(int64(7))})
	require.ErrorIs(t, err, ErrFetchFailed)
	assert.Equal(t, 1, h.fetcher.calls)
}

func TestResolveHandlersRunFirstAndAreNotCached(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	resp, err := h.resolver.Resolve(context.Background(), Request{URL: "https://example.com/song.mp3", DoShortcode: true})
	require.NoError(t, err)
	assert.Equal(t, SourceHandler, resp.Source)
	assert.Equal(t, `expanded:[audio src="https://example.com/song.mp3" /]`, resp.HTML)
	assert.Zero(t, h.cache.gets)
	assert.Empty(t, h.cache.puts)
	assert.Zero(t, h.registry.calls)
}

func TestResolveLocalShortCircuit(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	local := "https://blog.example.com/?p=5"
	h.posts.urls[local] = 5
	h.posts.contextual[5] = oembed.Data{{Key: "type", Value: "rich"}, {Key: "html", Value: "<blockquote>local</blockquote>"}}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: local})
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, resp.Source)
	assert.Equal(t, "<blockquote>local</blockquote>", resp.HTML)
	assert.Zero(t, h.fetcher.calls)

	raw, err := h.resolver.Resolve(context.Background(), Request{URL: local, Raw: true})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"rich","html":"<blockquote>local</blockquote>"}`, raw.Raw)
	assert.Zero(t, h.fetcher.calls)
}

func TestResolveLocalLookupFailureFallsThrough(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.posts.err = errBoom
	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, resp.Source)
}

func TestResolveUnrenderableLocalDataFallsThrough(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.posts.urls[videoURL] = 5
	h.posts.contextual[5] = oembed.Data{{Key: "type", Value: "rich"}, {Key: "title", Value: "no markup"}}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, resp.Source)
	assert.Equal(t, videoMarkup, resp.HTML)
	assert.Equal(t, 1, h.fetcher.calls)
}

func TestResolveSanitizesDiscoveredRichResults(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	discovered := "https://blog.other.org/post"
	h.registry.providers[discovered] = Provider{Endpoint: "https://blog.other.org/oembed?url=x", Discovered: true}

	resp, err := h.resolver.Resolve(context.Background(), Request{URL: discovered})
	require.NoError(t, err)
	assert.Equal(t, "clean:"+videoMarkup, resp.HTML)
	assert.Equal(t, 1, h.sanitizer.calls)

	resp, err = h.resolver.Resolve(context.Background(), Request{URL: discovered, SkipSanitization: true, SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, videoMarkup, resp.HTML)
	assert.Equal(t, 1, h.sanitizer.calls)

	h.sanitizer.ok = false
	_, err = h.resolver.Resolve(context.Background(), Request{URL: discovered, SkipCache: true})
	require.ErrorIs(t, err, ErrFetchFailed)
}

func TestResolveRegistryProvidersAreNotSanitized(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	_, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL})
	require.NoError(t, err)
	assert.Zero(t, h.sanitizer.calls)
}

func TestResolveSuppliedDimensionsReachFetcherAndKey(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	_, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL, Width: ptr(640), Height: ptr(360)})
	require.NoError(t, err)
	assert.Equal(t, FetchArgs{MaxWidth: 640, MaxHeight: 360}, h.fetcher.lastArgs)
	require.Len(t, h.cache.puts, 1)
	assert.Equal(t, "a4868da4df9414478c78070de1f99672", h.cache.puts[0].Key.Suffix)
	assert.Equal(t, h.resolver.KeyPolicy().Key(videoURL, cachekey.Supplied{Width: ptr(640), Height: ptr(360)}), h.cache.puts[0].Key.Suffix)
}

func TestResolveContextCancellationSurfacesAsFetchFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t, time.Hour)
	h.fetcher.err = context.Canceled
	_, err := h.resolver.Resolve(context.Background(), Request{URL: videoURL, SkipCache: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestResolveUsesConfiguredResponseSizeLimit(t *testing.T) {
	t.Parallel()

	registry := &fakeRegistry{providers: map[string]Provider{videoURL: {Endpoint: "https://www.youtube.com/oembed"}}}
	r, err := NewResolver(Deps{Providers: registry, Fetcher: &fakeFetcher{data: videoData()}},
		Config{ResponseSizeLimit: 4096}, zap.NewNop())
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), Request{URL: videoURL, Raw: true})
	require.NoError(t, err)
	assert.Equal(t, int64(4096), registry.lastOpts.ResponseSizeLimit)

	_, err = r.Resolve(context.Background(), Request{URL: videoURL, Raw: true, ResponseSizeLimit: ptr(int64(100))})
	require.NoError(t, err)
	assert.Equal(t, int64(100), registry.lastOpts.ResponseSizeLimit)
}
