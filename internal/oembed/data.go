// Package oembed models oEmbed response payloads as ordered key/value documents.
//
// Providers return objects whose key order matters to downstream consumers (raw
// output, cache compatibility), so Data keeps fields in document order instead of
// using a map.
package oembed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Field is a single key/value pair of an oEmbed object.
//
// Value is one of string, float64, bool, nil, Data (nested object) or []any (array).
type Field struct {
	Key   string
	Value any
}

// Data is an ordered oEmbed object.
type Data []Field

// Get returns the value stored under key.
func (d Data) Get(key string) (any, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Str returns the scalar value under key rendered as text, or "" when missing.
func (d Data) Str(key string) string {
	v, ok := d.Get(key)
	if !ok {
		return ""
	}
	return Scalar(v)
}

// Set replaces the value under key in place or appends a new field.
func (d Data) Set(key string, value any) Data {
	for i := range d {
		if d[i].Key == key {
			d[i].Value = value
			return d
		}
	}
	return append(d, Field{Key: key, Value: value})
}

// Scalar renders a scalar value the way PHP casts it to string.
// Objects and arrays render as "".
func Scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if val {
			return "1"
		}
		return ""
	case float64:
		return FormatNumber(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// FormatNumber renders a JSON number using its shortest decimal representation.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// MarshalJSON encodes the object keeping field order. HTML characters are not escaped.
func (d Data) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalValue(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := marshalValue(f.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal field %q: %w", f.Key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
