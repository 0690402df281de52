package collyfetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
)

// ErrNoEndpoint is returned when a page advertises no oEmbed endpoint.
var ErrNoEndpoint = errors.New("no oembed endpoint advertised")

var linkTypes = map[string]string{
	"application/json+oembed": "json",
	"text/xml+oembed":         "xml",
	"application/xml+oembed":  "xml",
}

// Discover fetches the page (bounded by opts.ResponseSizeLimit) and returns the oEmbed
// endpoint it advertises through <link> tags. JSON links win over XML links; the first
// JSON link and the last XML link are used.
func (f *Fetcher) Discover(ctx context.Context, pageURL string, opts embed.MatchOptions) (string, error) {
	limit := opts.ResponseSizeLimit
	if limit <= 0 {
		limit = embed.DefaultResponseSizeLimit
	}

	found := map[string]string{}
	collect := func(c *colly.Collector) {
		c.OnHTML("link[type][href]", func(e *colly.HTMLElement) {
			kind, ok := linkTypes[e.Attr("type")]
			if !ok {
				return
			}
			if opts.LinkType != "" && opts.LinkType != kind {
				return
			}
			if kind == "json" && found["json"] != "" {
				return
			}
			found[kind] = e.Request.AbsoluteURL(e.Attr("href"))
		})
	}

	res, err := f.get(ctx, pageURL, int(limit), collect)
	if err != nil {
		return "", fmt.Errorf("discover %s: %w", pageURL, err)
	}
	for _, kind := range []string{"json", "xml"} {
		if endpoint := found[kind]; endpoint != "" {
			f.logger.Debug("Discovered oEmbed endpoint",
				zap.String("url", pageURL), zap.String("endpoint", endpoint), zap.Int("status", res.StatusCode))
			return endpoint, nil
		}
	}
	return "", ErrNoEndpoint
}
