package oembed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// ErrInvalidPayload indicates a provider body that is not an oEmbed object.
var ErrInvalidPayload = errors.New("invalid oembed payload")

// ParseJSON decodes a JSON object into Data, preserving key order.
func ParseJSON(body []byte) (Data, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed json", ErrInvalidPayload)
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: json document is not an object", ErrInvalidPayload)
	}
	return objectFromJSON(doc), nil
}

func objectFromJSON(obj gjson.Result) Data {
	data := Data{}
	obj.ForEach(func(key, value gjson.Result) bool {
		data = append(data, Field{Key: key.String(), Value: valueFromJSON(value)})
		return true
	})
	return data
}

func valueFromJSON(v gjson.Result) any {
	switch {
	case v.IsObject():
		return objectFromJSON(v)
	case v.IsArray():
		items := []any{}
		for _, item := range v.Array() {
			items = append(items, valueFromJSON(item))
		}
		return items
	}
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Num
	case gjson.True:
		return true
	case gjson.False:
		return false
	default:
		return nil
	}
}

// ParseXML decodes an <oembed> document into Data. Leaf elements become strings,
// elements with children become nested Data.
func ParseXML(body []byte) (Data, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: xml document has no root element", ErrInvalidPayload)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if _, ok := tok.(xml.StartElement); !ok {
			continue
		}
		value, err := decodeElement(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		data, ok := value.(Data)
		if !ok {
			return nil, fmt.Errorf("%w: xml root element has no fields", ErrInvalidPayload)
		}
		return data, nil
	}
}

func decodeElement(dec *xml.Decoder) (any, error) {
	var (
		children Data
		text     bytes.Buffer
	)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			value, err := decodeElement(dec)
			if err != nil {
				return nil, err
			}
			children = append(children, Field{Key: t.Name.Local, Value: value})
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if children != nil {
				return children, nil
			}
			return text.String(), nil
		}
	}
}
