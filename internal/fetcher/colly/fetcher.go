// Package collyfetcher implements the oEmbed remote fetcher and endpoint discovery using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
	"github.com/JakeFAU/embedctl/internal/metrics"
	"github.com/JakeFAU/embedctl/internal/oembed"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultUserAgent   = "embedctl/1.0 (+https://oembed.com)"
	defaultMaxBodySize = 10 * 1024 * 1024
)

// ErrUnexpectedStatus is returned for non-2xx provider responses.
var ErrUnexpectedStatus = errors.New("unexpected provider status")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// MaxBodySize bounds provider responses. Zero selects 10 MiB.
	MaxBodySize int
	// RateLimiter, when set, is consulted before every request.
	RateLimiter RateLimiter
}

// RateLimiter throttles outbound requests per host.
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher implements embed.Fetcher and embed.Discoverer using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// page is one fetched document.
type page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch requests the provider endpoint as JSON, negotiating down to XML when the
// provider answers 501 Not Implemented.
func (f *Fetcher) Fetch(ctx context.Context, provider embed.Provider, rawURL string, args embed.FetchArgs) (oembed.Data, error) {
	for _, format := range []string{"json", "xml"} {
		endpoint, err := BuildEndpointURL(provider.Endpoint, rawURL, args, format)
		if err != nil {
			return nil, err
		}
		res, err := f.get(ctx, endpoint, f.maxBodySize(), nil)
		if err != nil {
			return nil, err
		}
		if res.StatusCode == http.StatusNotImplemented {
			f.logger.Debug("Provider does not implement format", zap.String("endpoint", endpoint), zap.String("format", format))
			continue
		}
		if res.StatusCode < 200 || res.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, res.StatusCode, endpoint)
		}
		if format == "xml" {
			return oembed.ParseXML(res.Body)
		}
		return oembed.ParseJSON(res.Body)
	}
	return nil, fmt.Errorf("%w: provider implements neither json nor xml", ErrUnexpectedStatus)
}

// BuildEndpointURL adds the oEmbed query arguments to a provider endpoint.
func BuildEndpointURL(endpoint, pageURL string, args embed.FetchArgs, format string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("parse endpoint %q: unsupported scheme", endpoint)
	}
	q := u.Query()
	if args.MaxWidth > 0 {
		q.Set("maxwidth", strconv.Itoa(args.MaxWidth))
	}
	if args.MaxHeight > 0 {
		q.Set("maxheight", strconv.Itoa(args.MaxHeight))
	}
	q.Set("url", pageURL)
	q.Set("dnt", "1")
	q.Set("format", format)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *Fetcher) maxBodySize() int {
	if f.cfg.MaxBodySize > 0 {
		return f.cfg.MaxBodySize
	}
	return defaultMaxBodySize
}

// get executes a single HTTP GET. extra registers additional callbacks (HTML parsing).
func (f *Fetcher) get(ctx context.Context, rawURL string, maxBody int, extra func(*colly.Collector)) (page, error) {
	var (
		result   page
		fetchErr error
	)
	if f.cfg.RateLimiter != nil {
		if err := f.cfg.RateLimiter.Wait(ctx, rawURL); err != nil {
			return page{}, err
		}
	}
	start := time.Now()
	collector := f.buildCollector(ctx, maxBody, start, &result, &fetchErr)
	if extra != nil {
		extra(collector)
	}
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return page{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	maxBody int,
	start time.Time,
	result *page,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.UserAgent = defaultUserAgent
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	collector.MaxBodySize = maxBody
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true
	collector.IgnoreRobotsTxt = true
	collector.Context = ctx

	baseTransport := f.transport
	if baseTransport == nil {
		baseTransport = newHTTPTransport()
	}
	collector.WithTransport(baseTransport)

	f.configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *page,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json, text/xml;q=0.9, text/html;q=0.8, */*;q=0.5")
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = page{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
		}
		metrics.ObserveFetch(result.URL, r.StatusCode, time.Since(start))
	})

	hooks.OnError(func(r *colly.Response, err error) {
		*fetchErr = err
		target := ""
		if r != nil && r.Request != nil && r.Request.URL != nil {
			target = r.Request.URL.String()
		}
		metrics.ObserveFetch(target, 0, time.Since(start))
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
