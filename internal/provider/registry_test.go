package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
)

type stubDiscoverer struct {
	endpoint string
	err      error
	calls    int
	lastOpts embed.MatchOptions
}

func (s *stubDiscoverer) Discover(_ context.Context, _ string, opts embed.MatchOptions) (string, error) {
	s.calls++
	s.lastOpts = opts
	return s.endpoint, s.err
}

func TestDefaultsCompile(t *testing.T) {
	t.Parallel()

	r, err := New(Defaults(), nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, len(Defaults()), r.Len())
}

func TestMatchRegistry(t *testing.T) {
	t.Parallel()

	r, err := New(Defaults(), nil, zap.NewNop())
	require.NoError(t, err)

	tests := []struct {
		url      string
		endpoint string
	}{
		{url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", endpoint: "https://www.youtube.com/oembed"},
		{url: "http://youtu.be/dQw4w9WgXcQ", endpoint: "https://www.youtube.com/oembed"},
		{url: "https://vimeo.com/76979871", endpoint: "https://vimeo.com/api/oembed.json"},
		{url: "https://www.ted.com/talks/some_talk", endpoint: "https://www.ted.com/services/v1/oembed.json"},
		{url: "https://www.reddit.com/r/golang/comments/abc/title/", endpoint: "https://www.reddit.com/oembed"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			p, ok, err := r.Match(context.Background(), tt.url, embed.MatchOptions{})
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.endpoint, p.Endpoint)
			assert.True(t, p.IsRegex)
			assert.False(t, p.Discovered)
		})
	}
}

func TestMatchFirstWins(t *testing.T) {
	t.Parallel()

	r, err := New([]Definition{
		{Format: "http://example.com/*", Endpoint: "https://first.example.com/oembed"},
		{Format: "#https?://example\\.com/.*#i", Endpoint: "https://second.example.com/oembed", Regex: true},
	}, nil, nil)
	require.NoError(t, err)

	p, ok, err := r.Match(context.Background(), "https://example.com/video/1", embed.MatchOptions{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://first.example.com/oembed", p.Endpoint)
	assert.Equal(t, "http://example.com/*", p.Pattern)
	assert.False(t, p.IsRegex)
}

func TestMatchDiscovery(t *testing.T) {
	t.Parallel()

	disc := &stubDiscoverer{endpoint: "https://blog.example.org/wp-json/oembed/1.0/embed?url=x"}
	r, err := New(Defaults(), disc, zap.NewNop())
	require.NoError(t, err)

	opts := embed.MatchOptions{Discover: true, ResponseSizeLimit: 1024, LinkType: "xml"}
	p, ok, err := r.Match(context.Background(), "https://blog.example.org/post", opts)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Discovered)
	assert.Equal(t, disc.endpoint, p.Endpoint)
	assert.Equal(t, opts, disc.lastOpts)

	_, ok, err = r.Match(context.Background(), "https://blog.example.org/post", embed.MatchOptions{Discover: false})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, disc.calls)

	disc.err = errors.New("timeout")
	_, ok, err = r.Match(context.Background(), "https://blog.example.org/post", opts)
	require.NoError(t, err)
	assert.False(t, ok)

	disc.err = nil
	disc.endpoint = ""
	_, ok, err = r.Match(context.Background(), "https://blog.example.org/post", opts)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListForceRegex(t *testing.T) {
	t.Parallel()

	r, err := New([]Definition{
		{Format: "http://example.com/*", Endpoint: "https://example.com/oembed.{format}"},
		{Format: "#https?://youtu\\.be/.*#i", Endpoint: "https://www.youtube.com/oembed", Regex: true},
	}, nil, nil)
	require.NoError(t, err)

	plain := r.List(false)
	require.Len(t, plain, 2)
	assert.Equal(t, "http://example.com/*", plain[0].Pattern)
	assert.Equal(t, "https://example.com/oembed.{format}", plain[0].Endpoint)

	forced := r.List(true)
	assert.Equal(t, `#https?\://example\.com/(.+)#i`, forced[0].Pattern)
	assert.True(t, forced[0].IsRegex)
	assert.Equal(t, "#https?://youtu\\.be/.*#i", forced[1].Pattern)
}

func TestNewRejectsBadDefinitions(t *testing.T) {
	t.Parallel()

	_, err := New([]Definition{{Format: "", Endpoint: "x"}}, nil, nil)
	require.Error(t, err)
	_, err = New([]Definition{{Format: "http://a/*"}}, nil, nil)
	require.Error(t, err)
	_, err = New([]Definition{{Format: "#(#", Endpoint: "x", Regex: true}}, nil, nil)
	require.Error(t, err)
}

func TestParseProviderFile(t *testing.T) {
	t.Parallel()

	mapping := []byte(`providers:
  - format: "https://media.example.com/*"
    endpoint: "https://media.example.com/oembed"
  - format: '#https?://clips\.example\.com/.*#i'
    endpoint: "https://clips.example.com/oembed"
    regex: true
`)
	defs, err := Parse(mapping)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "https://media.example.com/*", defs[0].Format)
	assert.True(t, defs[1].Regex)

	seq := []byte(`- format: "https://a.example.com/*"
  endpoint: "https://a.example.com/oembed"
`)
	defs, err = Parse(seq)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	_, err = Parse([]byte("just a string"))
	require.Error(t, err)
}

func TestBuild(t *testing.T) {
	t.Parallel()

	defs, err := Build("", false)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), defs)

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`- format: "https://a.example.com/*"
  endpoint: "https://a.example.com/oembed"
`), 0o600))

	defs, err = Build(path, false)
	require.NoError(t, err)
	assert.Len(t, defs, len(Defaults())+1)
	assert.Equal(t, "https://a.example.com/*", defs[0].Format)

	defs, err = Build(path, true)
	require.NoError(t, err)
	assert.Len(t, defs, 1)

	_, err = Build(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.Error(t, err)
}
