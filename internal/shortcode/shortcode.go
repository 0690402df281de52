// Package shortcode expands the media shortcodes emitted by embed handlers into HTML5 players.
package shortcode

import (
	"fmt"
	"html"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultVideoWidth  = 640
	defaultVideoHeight = 360
)

var (
	tagPattern  = regexp.MustCompile(`\[(audio|video)((?:\s+[\w-]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s'"\]]+))*)\s*/?\]`)
	attrPattern = regexp.MustCompile(`([\w-]+)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s'"\]]+))`)
)

var mimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".wav":  "audio/wav",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".ogv":  "video/ogg",
	".flv":  "video/x-flv",
}

// Renderer implements embed.ShortcodeRenderer for [audio] and [video].
type Renderer struct {
	contentWidth int
}

// New returns a Renderer. contentWidth caps video width when positive.
func New(contentWidth int) *Renderer {
	return &Renderer{contentWidth: contentWidth}
}

// Expand replaces every [audio] and [video] shortcode in content. Other text,
// including unknown shortcodes, is left untouched.
func (r *Renderer) Expand(content string) string {
	matches := tagPattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && content[start-1] == '[' {
			continue
		}
		tag := content[m[2]:m[3]]
		attrs := ParseAttrs(content[m[4]:m[5]])
		closing := "[/" + tag + "]"
		if strings.HasPrefix(content[end:], closing) {
			end += len(closing)
		}
		b.WriteString(content[last:start])
		switch tag {
		case "audio":
			b.WriteString(r.audio(attrs))
		case "video":
			b.WriteString(r.video(attrs))
		}
		last = end
	}
	b.WriteString(content[last:])
	return b.String()
}

// ParseAttrs parses shortcode attributes into a map with lowercase keys.
func ParseAttrs(raw string) map[string]string {
	out := map[string]string{}
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		val := m[2]
		if m[3] != "" {
			val = m[3]
		} else if m[4] != "" {
			val = m[4]
		}
		out[strings.ToLower(m[1])] = val
	}
	return out
}

func (r *Renderer) audio(attrs map[string]string) string {
	src := safeSource(attrs["src"])
	if src == "" {
		return ""
	}
	return fmt.Sprintf(
		`<audio class="wp-audio-shortcode" preload="none" style="width: 100%%;" controls="controls">%s</audio>`,
		source(src),
	)
}

func (r *Renderer) video(attrs map[string]string) string {
	src := safeSource(attrs["src"])
	if src == "" {
		return ""
	}
	width := atoiDefault(attrs["width"], defaultVideoWidth)
	height := atoiDefault(attrs["height"], defaultVideoHeight)
	if r.contentWidth > 0 && width > r.contentWidth {
		height = height * r.contentWidth / width
		width = r.contentWidth
	}
	return fmt.Sprintf(
		`<video class="wp-video-shortcode" width="%d" height="%d" preload="metadata" controls="controls">%s</video>`,
		width, height, source(src),
	)
}

func source(src string) string {
	escaped := html.EscapeString(src)
	typ := ""
	if u, err := url.Parse(src); err == nil {
		typ = mimeTypes[strings.ToLower(path.Ext(u.Path))]
	}
	if typ == "" {
		return fmt.Sprintf(`<source src="%s" /><a href="%s">%s</a>`, escaped, escaped, escaped)
	}
	return fmt.Sprintf(`<source type="%s" src="%s" /><a href="%s">%s</a>`, typ, escaped, escaped, escaped)
}

func safeSource(raw string) string {
	raw = strings.TrimSpace(html.UnescapeString(raw))
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return raw
}

func atoiDefault(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return def
	}
	return n
}
