package embed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

type fakeRegistry struct {
	providers map[string]Provider
	err       error
	calls     int
	lastOpts  MatchOptions
}

func (f *fakeRegistry) Match(_ context.Context, url string, opts MatchOptions) (Provider, bool, error) {
	f.calls++
	f.lastOpts = opts
	if f.err != nil {
		return Provider{}, false, f.err
	}
	p, ok := f.providers[url]
	return p, ok, nil
}

func (f *fakeRegistry) List(bool) []Provider {
	out := make([]Provider, 0, len(f.providers))
	for _, p := range f.providers {
		out = append(out, p)
	}
	return out
}

type fakeFetcher struct {
	data     oembed.Data
	err      error
	calls    int
	lastArgs FetchArgs
}

func (f *fakeFetcher) Fetch(_ context.Context, _ Provider, _ string, args FetchArgs) (oembed.Data, error) {
	f.calls++
	f.lastArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type putCall struct {
	Key  CacheKey
	HTML string
	TTL  time.Duration
}

type fakeCache struct {
	mu         sync.Mutex
	entries    map[CacheKey]CacheEntry
	cachePosts map[string]int64
	puts       []putCall
	gets       int
	getErr     error
	perPost    map[int64]int
	sweep      SweepReport
	records    []CacheRecord
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		entries:    map[CacheKey]CacheEntry{},
		cachePosts: map[string]int64{},
		perPost:    map[int64]int{},
	}
}

func (f *fakeCache) Get(_ context.Context, key CacheKey) (CacheEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return CacheEntry{}, false, f.getErr
	}
	e, ok := f.entries[key]
	return e, ok, nil
}

func (f *fakeCache) Put(_ context.Context, key CacheKey, html string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts = append(f.puts, putCall{Key: key, HTML: html, TTL: ttl})
	return nil
}

func (f *fakeCache) FindCachePostID(_ context.Context, suffix string) (int64, bool, error) {
	id, ok := f.cachePosts[suffix]
	return id, ok, nil
}

func (f *fakeCache) DeleteForPost(_ context.Context, postID int64) (int, error) {
	n := f.perPost[postID]
	delete(f.perPost, postID)
	return n, nil
}

func (f *fakeCache) DeleteAll(context.Context) (SweepReport, error) {
	r := f.sweep
	f.sweep = SweepReport{}
	return r, nil
}

func (f *fakeCache) ListLegacyEntries(context.Context) (LegacyEntries, error) {
	return LegacyEntries{}, nil
}

func (f *fakeCache) Records(context.Context) ([]CacheRecord, error) {
	return f.records, nil
}

type fakePosts struct {
	posts      map[int64]Post
	urls       map[string]int64
	contextual map[int64]oembed.Data
	err        error
}

func (f *fakePosts) GetPost(_ context.Context, id int64) (Post, bool, error) {
	if f.err != nil {
		return Post{}, false, f.err
	}
	p, ok := f.posts[id]
	return p, ok, nil
}

func (f *fakePosts) ResolveURLToPostID(_ context.Context, url string) (int64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	id, ok := f.urls[url]
	return id, ok, nil
}

func (f *fakePosts) GetContextualEmbedData(_ context.Context, id int64, _ int) (oembed.Data, bool, error) {
	d, ok := f.contextual[id]
	return d, ok, nil
}

type fakeHandlers struct {
	markup map[string]string
}

func (f fakeHandlers) Render(url string, _ HandlerAttrs) (string, bool) {
	m, ok := f.markup[url]
	return m, ok
}

type fakeSanitizer struct {
	calls int
	ok    bool
}

func (f *fakeSanitizer) Sanitize(html string, _ oembed.Data) (string, bool) {
	f.calls++
	return "clean:" + html, f.ok
}

type fakeShortcodes struct{}

func (fakeShortcodes) Expand(content string) string {
	return "expanded:" + content
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type fakePublisher struct {
	events []any
	topics []string
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.topics = append(f.topics, topic)
	f.events = append(f.events, payload)
	return fmt.Sprintf("msg-%d", len(f.events)), nil
}

type fakeBlobs struct {
	objects map[string][]byte
	err     error
}

func (f *fakeBlobs) PutObject(_ context.Context, path string, _ string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, data); err != nil {
		return "", err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[path] = buf.Bytes()
	return "memory://" + path, nil
}

type fakeIDs struct{}

func (fakeIDs) NewID() (string, error) {
	return "event-1", nil
}

var errBoom = errors.New("boom")

type fakeTransients struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeTransients() *fakeTransients {
	return &fakeTransients{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeTransients) GetTransient(_ context.Context, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[name]
	return v, ok, nil
}

func (f *fakeTransients) SetTransient(_ context.Context, name, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
	f.ttls[name] = ttl
	return nil
}

func (f *fakeTransients) DeleteTransients(context.Context, string) (int, error) {
	return 0, nil
}

func (f *fakeTransients) ListTransients(context.Context, string) ([]Transient, error) {
	return nil, nil
}
