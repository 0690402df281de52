package embed

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

// DataToHTML converts a provider payload into embeddable markup. Photos become a linked
// image, titled links become an anchor, video and rich payloads use their html field;
// anything else is rejected.
func DataToHTML(data oembed.Data, pageURL string) (string, bool) {
	switch data.Str("type") {
	case "photo":
		src := data.Str("url")
		width := data.Str("width")
		height := data.Str("height")
		if src == "" || width == "" || height == "" {
			return "", false
		}
		return fmt.Sprintf(`<a href="%s"><img src="%s" alt="%s" width="%s" height="%s" /></a>`,
			escapeURL(pageURL), escapeURL(src), escapeAttr(data.Str("title")),
			escapeAttr(width), escapeAttr(height)), true
	case "link":
		title := data.Str("title")
		if title == "" {
			return "", false
		}
		return fmt.Sprintf(`<a href="%s">%s</a>`, escapeURL(pageURL), html.EscapeString(title)), true
	case "video", "rich":
		markup := strings.TrimSpace(data.Str("html"))
		if markup == "" {
			return "", false
		}
		return markup, true
	default:
		return "", false
	}
}

func escapeAttr(s string) string {
	return html.EscapeString(s)
}

// escapeURL drops URLs with unexpected schemes and escapes the rest for an attribute.
func escapeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "":
	default:
		return ""
	}
	return html.EscapeString(raw)
}
