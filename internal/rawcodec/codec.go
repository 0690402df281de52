// Package rawcodec encodes oEmbed payloads for raw command output as JSON or XML.
package rawcodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

// Format names a raw output encoding.
type Format string

const (
	// FormatJSON encodes payloads as a JSON object.
	FormatJSON Format = "json"
	// FormatXML encodes payloads as an <oembed> document.
	FormatXML Format = "xml"
)

var (
	// ErrUnsupportedFormat is returned for unknown or disabled formats.
	ErrUnsupportedFormat = errors.New("unsupported raw format")
	// ErrEmptyData is returned when XML output is requested for an empty payload.
	ErrEmptyData = errors.New("empty oembed data")
)

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatXML:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Option customizes a Codec.
type Option func(*Codec)

// WithoutXML disables the XML encoder, for runtimes without XML support.
func WithoutXML() Option {
	return func(c *Codec) {
		c.xml = false
	}
}

// Codec encodes payloads into raw output.
type Codec struct {
	xml bool
}

// New returns a Codec with every format enabled unless options disable them.
func New(opts ...Option) *Codec {
	c := &Codec{xml: true}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode renders data in the requested format. An empty format means JSON.
func (c *Codec) Encode(data oembed.Data, format Format) (string, error) {
	switch format {
	case "", FormatJSON:
		out, err := data.MarshalJSON()
		if err != nil {
			return "", fmt.Errorf("encode json: %w", err)
		}
		return string(out), nil
	case FormatXML:
		if !c.xml {
			return "", fmt.Errorf("%w: xml support is disabled", ErrUnsupportedFormat)
		}
		return encodeXML(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// Encode renders data with a default Codec.
func Encode(data oembed.Data, format Format) (string, error) {
	return New().Encode(data, format)
}
