package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterWaitsPerHost(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.youtube.com/oembed"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.youtube.com/oembed?url=x"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://B.example.com/1"))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Wait(ctx, "https://vimeo.com/api/oembed.json"))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterRespectsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, "https://example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", hostOf("https://Example.com:8443/x"))
	assert.Equal(t, "unknown", hostOf("::"))
	assert.Equal(t, "unknown", hostOf("not a url"))
}
