package embed

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

const (
	minContextualWidth     = 200
	maxContextualWidth     = 600
	minContextualHeight    = 200
	defaultContextualWidth = 600
)

// ContextualData builds the oEmbed payload a local post is embedded with.
// Only published posts are embeddable.
func ContextualData(post Post, site Site, width int) (oembed.Data, bool) {
	if post.Status != "publish" {
		return nil, false
	}
	if width <= 0 {
		width = defaultContextualWidth
	}
	width = min(max(width, minContextualWidth), maxContextualWidth)
	height := max(int(math.Ceil(float64(width)/16*9)), minContextualHeight)

	permalink := post.URL
	embedURL := strings.TrimRight(permalink, "/") + "/embed/"
	title := escapeAttr(post.Title)
	markup := fmt.Sprintf(
		`<blockquote class="wp-embedded-content"><a href="%s">%s</a></blockquote>`+
			`<iframe sandbox="allow-scripts" security="restricted" src="%s" width="%d" height="%d" title="%s" `+
			`frameborder="0" marginwidth="0" marginheight="0" scrolling="no" class="wp-embedded-content"></iframe>`,
		escapeURL(permalink), escapeAttr(post.Title), escapeURL(embedURL), width, height, title,
	)

	return oembed.Data{
		{Key: "version", Value: "1.0"},
		{Key: "provider_name", Value: site.Name},
		{Key: "provider_url", Value: site.URL},
		{Key: "author_name", Value: post.AuthorName},
		{Key: "author_url", Value: site.URL},
		{Key: "title", Value: post.Title},
		{Key: "type", Value: "rich"},
		{Key: "width", Value: float64(width)},
		{Key: "height", Value: float64(height)},
		{Key: "html", Value: markup},
	}, true
}

// LocalPostID reports whether rawURL points at siteURL and, when it carries a `p` query
// parameter, the post id it names.
func LocalPostID(rawURL, siteURL string) (int64, bool, bool) {
	target, err := url.Parse(rawURL)
	if err != nil {
		return 0, false, false
	}
	site, err := url.Parse(siteURL)
	if err != nil || site.Host == "" {
		return 0, false, false
	}
	if !strings.EqualFold(target.Hostname(), site.Hostname()) {
		return 0, false, false
	}
	raw := target.Query().Get("p")
	if raw == "" {
		return 0, false, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, true
	}
	return id, true, true
}
