// Package cachekey derives embed cache keys that stay compatible with caches written by
// the host content system.
//
// A key is md5(url + serialize(merge(supplied, defaults))). The serialized form depends on
// key order and value types, so both are reproduced exactly: defaults are integers in the
// order width, height; supplied attributes are strings in the order width, height, discover.
package cachekey

import (
	"crypto/md5" // #nosec G501 -- cache key format is fixed by existing caches.
	"encoding/hex"
	"math"
	"strconv"
)

const (
	defaultWidth = 500
	maxHeight    = 1000
)

// Attr is one named embed attribute.
type Attr struct {
	Name  string
	Value any
}

// Attrs is an ordered attribute list.
type Attrs []Attr

// Index returns the position of name or -1.
func (a Attrs) Index(name string) int {
	for i, attr := range a {
		if attr.Name == name {
			return i
		}
	}
	return -1
}

// Supplied captures the attributes an operator passed explicitly.
type Supplied struct {
	Width    *int
	Height   *int
	Discover *bool
}

// Attrs renders supplied attributes in canonical order. Width and height are strings
// and discover is "1" or "0", mirroring command-line input.
func (s Supplied) Attrs() Attrs {
	attrs := Attrs{}
	if s.Width != nil {
		attrs = append(attrs, Attr{Name: "width", Value: strconv.Itoa(*s.Width)})
	}
	if s.Height != nil {
		attrs = append(attrs, Attr{Name: "height", Value: strconv.Itoa(*s.Height)})
	}
	if s.Discover != nil {
		attrs = append(attrs, Attr{Name: "discover", Value: discoverValue(*s.Discover)})
	}
	return attrs
}

func discoverValue(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

// DefaultSize returns the default embed width and height for a content width.
func DefaultSize(contentWidth int) (int, int) {
	width := contentWidth
	if width <= 0 {
		width = defaultWidth
	}
	height := int(math.Ceil(float64(width) * 1.5))
	if height > maxHeight {
		height = maxHeight
	}
	return width, height
}

// Defaults returns the default embed attributes for a content width.
func Defaults(contentWidth int) Attrs {
	width, height := DefaultSize(contentWidth)
	return Attrs{
		{Name: "width", Value: width},
		{Name: "height", Value: height},
	}
}

// Merge overlays supplied attributes on defaults. Keys keep the defaults' order, supplied
// values replace defaults in place and new keys are appended in supplied order.
func Merge(supplied, defaults Attrs) Attrs {
	out := make(Attrs, len(defaults), len(defaults)+len(supplied))
	copy(out, defaults)
	for _, attr := range supplied {
		if i := out.Index(attr.Name); i >= 0 {
			out[i].Value = attr.Value
			continue
		}
		out = append(out, attr)
	}
	return out
}

// Compute returns the lowercase hex md5 of url followed by the serialized attributes.
func Compute(url string, attrs Attrs) string {
	sum := md5.Sum([]byte(url + Serialize(attrs))) // #nosec G401 -- see import note.
	return hex.EncodeToString(sum[:])
}

// Policy computes keys for a configured content width.
type Policy struct {
	ContentWidth int
}

// Defaults returns the policy's default attributes.
func (p Policy) Defaults() Attrs {
	return Defaults(p.ContentWidth)
}

// Key returns the cache key for exactly the supplied attributes.
func (p Policy) Key(url string, s Supplied) string {
	return Compute(url, Merge(s.Attrs(), p.Defaults()))
}

// Candidates returns the keys a cached entry may have been written under. When discover
// was not supplied the variants are tried in the order unset, "1", "0".
func (p Policy) Candidates(url string, s Supplied) []string {
	if s.Discover != nil {
		return []string{p.Key(url, s)}
	}
	keys := make([]string, 0, 3)
	keys = append(keys, p.Key(url, s))
	for _, on := range []bool{true, false} {
		variant := s
		variant.Discover = &on
		keys = append(keys, p.Key(url, variant))
	}
	return keys
}

// ProxyArgs are the parameters of a proxy request after defaults are applied.
type ProxyArgs struct {
	URL       string
	Format    string
	MaxWidth  int
	MaxHeight *int
	Discover  bool
}

// Attrs renders the arguments in the order url, format, maxwidth, maxheight, discover.
// maxheight is present only when supplied.
func (a ProxyArgs) Attrs() Attrs {
	attrs := Attrs{
		{Name: "url", Value: a.URL},
		{Name: "format", Value: a.Format},
		{Name: "maxwidth", Value: a.MaxWidth},
	}
	if a.MaxHeight != nil {
		attrs = append(attrs, Attr{Name: "maxheight", Value: *a.MaxHeight})
	}
	return append(attrs, Attr{Name: "discover", Value: a.Discover})
}

// ProxyTransient returns the transient name caching a proxy response:
// "oembed_" followed by the md5 of the serialized arguments.
func ProxyTransient(a ProxyArgs) string {
	return "oembed_" + Compute("", a.Attrs())
}
