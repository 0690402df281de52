package cachekey

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Serialize renders attributes in the host's native serialization format for an
// associative array: a:<n>:{s:<len>:"<key>";<value>...}.
//
// Supported values are int, int64, string, bool, float64 and nil. Any other type is
// rendered as its string form.
func Serialize(attrs Attrs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "a:%d:{", len(attrs))
	for _, a := range attrs {
		writeString(&b, a.Name)
		writeValue(&b, a.Value)
	}
	b.WriteByte('}')
	return b.String()
}

func writeValue(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("N;")
	case bool:
		if val {
			b.WriteString("b:1;")
		} else {
			b.WriteString("b:0;")
		}
	case int:
		fmt.Fprintf(b, "i:%d;", val)
	case int64:
		fmt.Fprintf(b, "i:%d;", val)
	case float64:
		fmt.Fprintf(b, "d:%s;", formatFloat(val))
	case string:
		writeString(b, val)
	default:
		writeString(b, fmt.Sprint(val))
	}
}

// writeString emits s:<bytelen>:"<value>"; the length counts bytes, not runes.
func writeString(b *strings.Builder, s string) {
	fmt.Fprintf(b, "s:%d:\"%s\";", len(s), s)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NAN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'G', -1, 64)
}
