// Package metrics exposes Prometheus collectors for embed resolution, cache maintenance
// and the proxy HTTP surface.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	resolutionsTotal           *prometheus.CounterVec
	cacheLookupsTotal          *prometheus.CounterVec
	remoteFetchesTotal         *prometheus.CounterVec
	remoteFetchDuration        *prometheus.HistogramVec
	cacheEntriesClearedTotal   *prometheus.CounterVec
	rateLimitDelaySeconds      *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		resolutionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedctl_resolutions_total",
				Help: "Total number of embed resolutions, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		cacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedctl_cache_lookups_total",
				Help: "Total number of embed cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		remoteFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedctl_remote_fetches_total",
				Help: "Total number of provider and discovery requests, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		remoteFetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embedctl_remote_fetch_duration_seconds",
				Help:    "Histogram of provider and discovery request latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		cacheEntriesClearedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "embedctl_cache_entries_cleared_total",
				Help: "Total number of cache entries removed, labeled by storage shape.",
			},
			[]string{"shape"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "embedctl_rate_limit_delay_seconds",
				Help:    "Histogram of time spent waiting on the per-host rate limiter, labeled by site.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveResolution counts one embed resolution.
func ObserveResolution(source, outcome string) {
	Init()
	if source == "" {
		source = "none"
	}
	resolutionsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveCacheLookup counts one cache lookup result (hit, miss, stale, error).
func ObserveCacheLookup(result string) {
	Init()
	cacheLookupsTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records one outbound request. A status of zero means a transport error.
func ObserveFetch(rawURL string, status int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	remoteFetchesTotal.WithLabelValues(site, label).Inc()
	remoteFetchDuration.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveCleared counts removed cache entries for a storage shape.
func ObserveCleared(shape string, n int) {
	Init()
	if n <= 0 {
		return
	}
	cacheEntriesClearedTotal.WithLabelValues(shape).Add(float64(n))
}

// ObserveRateLimitDelay records how long an outbound request waited for a token.
func ObserveRateLimitDelay(site string, delay time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(site).Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
