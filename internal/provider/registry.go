// Package provider holds the ordered oEmbed provider registry.
package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/embedctl/internal/embed"
	"github.com/JakeFAU/embedctl/internal/pattern"
)

// Definition describes one provider as configured.
type Definition struct {
	// Format is a URL mask: a wildcard mask or, when Regex is set, a delimited pattern.
	Format   string `yaml:"format"`
	Endpoint string `yaml:"endpoint"`
	Regex    bool   `yaml:"regex"`
}

type entry struct {
	def Definition
	re  *regexp.Regexp
}

// Registry matches URLs against providers in registration order.
type Registry struct {
	entries    []entry
	discoverer embed.Discoverer
	logger     *zap.Logger
}

// New compiles the definitions. discoverer may be nil to disable discovery.
func New(defs []Definition, discoverer embed.Discoverer, logger *zap.Logger) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{discoverer: discoverer, logger: logger}
	for _, def := range defs {
		if err := r.Add(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add appends a provider.
func (r *Registry) Add(def Definition) error {
	if strings.TrimSpace(def.Format) == "" {
		return fmt.Errorf("provider format is required")
	}
	if strings.TrimSpace(def.Endpoint) == "" {
		return fmt.Errorf("provider %q: endpoint is required", def.Format)
	}
	expr := def.Format
	if !def.Regex {
		expr = pattern.FromWildcard(def.Format)
	}
	re, err := pattern.Compile(expr)
	if err != nil {
		return fmt.Errorf("provider %q: %w", def.Format, err)
	}
	r.entries = append(r.entries, entry{def: def, re: re})
	return nil
}

// Match returns the first provider whose pattern matches url, then falls back to
// discovery when enabled. Discovery failures are reported as no match.
func (r *Registry) Match(ctx context.Context, url string, opts embed.MatchOptions) (embed.Provider, bool, error) {
	for _, e := range r.entries {
		if e.re.MatchString(url) {
			return embed.Provider{
				Pattern:  e.def.Format,
				Endpoint: strings.ReplaceAll(e.def.Endpoint, "{format}", "json"),
				IsRegex:  e.def.Regex,
			}, true, nil
		}
	}
	if !opts.Discover || r.discoverer == nil {
		return embed.Provider{}, false, nil
	}
	endpoint, err := r.discoverer.Discover(ctx, url, opts)
	if err != nil {
		r.logger.Debug("oEmbed discovery failed", zap.String("url", url), zap.Error(err))
		return embed.Provider{}, false, nil
	}
	if endpoint == "" {
		return embed.Provider{}, false, nil
	}
	return embed.Provider{Endpoint: endpoint, Discovered: true}, true, nil
}

// List returns the providers in order. With forceRegex, wildcard masks are rendered as
// the delimited pattern they compile to.
func (r *Registry) List(forceRegex bool) []embed.Provider {
	out := make([]embed.Provider, 0, len(r.entries))
	for _, e := range r.entries {
		p := embed.Provider{Pattern: e.def.Format, Endpoint: e.def.Endpoint, IsRegex: e.def.Regex}
		if forceRegex && !e.def.Regex {
			p.Pattern = pattern.FromWildcard(e.def.Format)
			p.IsRegex = true
		}
		out = append(out, p)
	}
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.entries)
}
