package embed

import (
	"regexp"
	"strconv"
)

var (
	ownLineURL     = regexp.MustCompile(`(?im)^\s*(https?://[^\s<>"]+)\s*$`)
	paragraphURL   = regexp.MustCompile(`(?i)<p(?:\s[^>]*)?>\s*(https?://[^\s<>"]+)\s*</p>`)
	embedShortcode = regexp.MustCompile(`(?is)\[embed((?:\s+[a-z_-]+=(?:"[^"]*"|'[^']*'|\S+))*)\s*\](.+?)\[/embed\]`)
	shortcodeAttr  = regexp.MustCompile(`(?i)([a-z_-]+)=(?:"([^"]*)"|'([^']*)'|(\S+))`)
)

// EmbedRef is one embeddable URL found in post content.
type EmbedRef struct {
	URL    string
	Width  *int
	Height *int
}

// FindEmbeds returns embeddable URLs in content: [embed] shortcodes first, then URLs
// standing on their own line or alone in a paragraph. Duplicates are dropped.
func FindEmbeds(content string) []EmbedRef {
	var refs []EmbedRef
	seen := map[string]bool{}
	add := func(ref EmbedRef) {
		if seen[ref.URL] {
			return
		}
		seen[ref.URL] = true
		refs = append(refs, ref)
	}

	for _, m := range embedShortcode.FindAllStringSubmatch(content, -1) {
		ref := EmbedRef{URL: m[2]}
		for _, attr := range shortcodeAttr.FindAllStringSubmatch(m[1], -1) {
			value := attr[2] + attr[3] + attr[4]
			n, err := strconv.Atoi(value)
			if err != nil {
				continue
			}
			switch attr[1] {
			case "width":
				ref.Width = &n
			case "height":
				ref.Height = &n
			}
		}
		add(ref)
	}
	stripped := embedShortcode.ReplaceAllString(content, "")
	for _, re := range []*regexp.Regexp{ownLineURL, paragraphURL} {
		for _, m := range re.FindAllStringSubmatch(stripped, -1) {
			add(EmbedRef{URL: m[1]})
		}
	}
	return refs
}
