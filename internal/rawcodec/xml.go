package rawcodec

import (
	"strings"

	"github.com/JakeFAU/embedctl/internal/oembed"
)

const (
	xmlHeader   = "<?xml version=\"1.0\"?>\n"
	rootElement = "oembed"
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

func encodeXML(data oembed.Data) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyData
	}
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString("<" + rootElement + ">")
	writeFields(&b, data)
	b.WriteString("</" + rootElement + ">\n")
	return b.String(), nil
}

func writeFields(b *strings.Builder, data oembed.Data) {
	for _, f := range data {
		writeNode(b, elementName(f.Key), f.Value)
	}
}

func writeNode(b *strings.Builder, name string, v any) {
	switch val := v.(type) {
	case oembed.Data:
		if len(val) == 0 {
			b.WriteString("<" + name + "/>")
			return
		}
		b.WriteString("<" + name + ">")
		writeFields(b, val)
		b.WriteString("</" + name + ">")
	case []any:
		if len(val) == 0 {
			b.WriteString("<" + name + "/>")
			return
		}
		b.WriteString("<" + name + ">")
		for _, item := range val {
			writeNode(b, rootElement, item)
		}
		b.WriteString("</" + name + ">")
	default:
		text := oembed.Scalar(val)
		if text == "" {
			b.WriteString("<" + name + "/>")
			return
		}
		b.WriteString("<" + name + ">" + textEscaper.Replace(text) + "</" + name + ">")
	}
}

// elementName maps numeric keys, which are not valid element names, to the root name.
func elementName(key string) string {
	if key == "" {
		return rootElement
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return key
		}
	}
	return rootElement
}
