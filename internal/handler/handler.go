// Package handler holds embed handlers: URL patterns rendered locally instead of through
// an oEmbed provider.
package handler

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/JakeFAU/embedctl/internal/embed"
	"github.com/JakeFAU/embedctl/internal/pattern"
)

// DefaultPriority matches the media handlers' priority.
const DefaultPriority = 9999

// RenderFunc produces markup for a matched URL.
type RenderFunc func(matches []string, url string, attrs embed.HandlerAttrs) string

// Handler is one registered embed handler.
type Handler struct {
	ID       string
	Pattern  string
	Priority int
	render   RenderFunc
	re       *regexp.Regexp
	order    int
}

// Registry implements embed.HandlerRegistry.
type Registry struct {
	handlers []Handler
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// NewDefault returns a registry with the audio and video media handlers.
func NewDefault() *Registry {
	r := New()
	// The built-in patterns are constants; Register cannot fail for them.
	_ = r.Register("audio", AudioPattern, DefaultPriority, renderAudio)
	_ = r.Register("video", VideoPattern, DefaultPriority, renderVideo)
	return r
}

// AudioPattern matches direct links to audio files.
var AudioPattern = `#^https?://.+?\.(` + strings.Join([]string{"mp3", "ogg", "flac", "m4a", "wav"}, "|") + `)$#i`

// VideoPattern matches direct links to video files.
var VideoPattern = `#^https?://.+?\.(` + strings.Join([]string{"mp4", "m4v", "webm", "ogv", "flv"}, "|") + `)$#i`

// Register adds a handler. Handlers run by ascending priority, then registration order.
func (r *Registry) Register(id, delimited string, priority int, render RenderFunc) error {
	if id == "" || render == nil {
		return fmt.Errorf("register handler %q: id and render func are required", id)
	}
	re, err := pattern.Compile(delimited)
	if err != nil {
		return fmt.Errorf("register handler %q: %w", id, err)
	}
	r.handlers = append(r.handlers, Handler{
		ID:       id,
		Pattern:  delimited,
		Priority: priority,
		render:   render,
		re:       re,
		order:    len(r.handlers),
	})
	sort.SliceStable(r.handlers, func(i, j int) bool {
		if r.handlers[i].Priority != r.handlers[j].Priority {
			return r.handlers[i].Priority < r.handlers[j].Priority
		}
		return r.handlers[i].order < r.handlers[j].order
	})
	return nil
}

// List returns the handlers in evaluation order.
func (r *Registry) List() []Handler {
	out := make([]Handler, len(r.handlers))
	copy(out, r.handlers)
	return out
}

// Render returns the first matching handler's markup.
func (r *Registry) Render(url string, attrs embed.HandlerAttrs) (string, bool) {
	for _, h := range r.handlers {
		m := h.re.FindStringSubmatch(url)
		if m == nil {
			continue
		}
		if out := h.render(m, url, attrs); out != "" {
			return out, true
		}
	}
	return "", false
}

func renderAudio(_ []string, url string, _ embed.HandlerAttrs) string {
	return fmt.Sprintf(`[audio src="%s" /]`, html.EscapeString(url))
}

func renderVideo(_ []string, url string, attrs embed.HandlerAttrs) string {
	dimensions := ""
	if attrs.Width > 0 && attrs.Height > 0 {
		dimensions = fmt.Sprintf(`width="%d" height="%d" `, attrs.Width, attrs.Height)
	}
	return fmt.Sprintf(`[video %ssrc="%s" /]`, dimensions, html.EscapeString(url))
}
