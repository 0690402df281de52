// Package sanitize filters rich/video oEmbed HTML from discovered (untrusted) providers.
package sanitize

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

var allowedAttrs = map[string]map[string]bool{
	"a":          {"href": true, "target": true},
	"blockquote": {},
	"iframe": {
		"src": true, "width": true, "height": true, "frameborder": true,
		"marginwidth": true, "marginheight": true, "scrolling": true, "title": true,
	},
}

// Sanitizer implements embed.Sanitizer with a goquery allow-list.
type Sanitizer struct{}

// New returns a Sanitizer.
func New() *Sanitizer {
	return &Sanitizer{}
}

// Sanitize keeps the first blockquote and the first iframe of raw, strips every
// attribute outside the allow-list and sandboxes the iframe. ok is false when raw holds
// no usable iframe.
func (s *Sanitizer) Sanitize(raw string, data oembed.Data) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return "", false
	}
	iframe := doc.Find("iframe").First()
	if iframe.Length() == 0 {
		return "", false
	}
	if src, _ := iframe.Attr("src"); !safeURL(src) {
		return "", false
	}

	var b strings.Builder
	if bq := doc.Find("blockquote").First(); bq.Length() > 0 {
		b.WriteString("<blockquote>")
		for _, n := range bq.Nodes {
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				writeInline(&b, c)
			}
		}
		b.WriteString("</blockquote>")
	}
	writeIframe(&b, iframe.Nodes[0], data.Str("title"))
	return b.String(), true
}

func writeIframe(b *strings.Builder, n *html.Node, title string) {
	b.WriteString("<iframe")
	hasTitle := false
	for _, a := range n.Attr {
		key := strings.ToLower(a.Key)
		if !allowedAttrs["iframe"][key] {
			continue
		}
		if key == "title" {
			hasTitle = true
		}
		writeAttr(b, key, a.Val)
	}
	if !hasTitle && title != "" {
		writeAttr(b, "title", title)
	}
	writeAttr(b, "sandbox", "allow-scripts")
	writeAttr(b, "security", "restricted")
	b.WriteString("></iframe>")
}

// writeInline renders allowed inline content; disallowed elements keep their text.
func writeInline(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(html.EscapeString(n.Data))
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "iframe":
			return
		case "a":
			b.WriteString("<a")
			for _, a := range n.Attr {
				key := strings.ToLower(a.Key)
				if !allowedAttrs["a"][key] || (key == "href" && !safeURL(a.Val)) {
					continue
				}
				writeAttr(b, key, a.Val)
			}
			b.WriteString(">")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				writeInline(b, c)
			}
			b.WriteString("</a>")
		default:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				writeInline(b, c)
			}
		}
	}
}

func writeAttr(b *strings.Builder, key, val string) {
	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(html.EscapeString(val))
	b.WriteString(`"`)
}

func safeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
