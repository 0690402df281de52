// Package pattern compiles delimited provider and handler patterns (`#body#flags`) into
// RE2 expressions and converts wildcard URL masks into that form.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed is returned for patterns without matching delimiters.
var ErrMalformed = errors.New("malformed pattern")

const wildcardToken = "___wildcard___"

// quoteChars are escaped by Quote.
const quoteChars = `.\+*?[^]$(){}=!<>|:-#`

// Quote escapes regex metacharacters plus the `#` delimiter.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	for _, r := range s {
		if strings.ContainsRune(quoteChars, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FromWildcard converts a wildcard mask such as `http://example.com/*` into a
// delimited, case-insensitive pattern that accepts both http and https.
func FromWildcard(mask string) string {
	quoted := Quote(strings.ReplaceAll(mask, "*", wildcardToken))
	quoted = strings.ReplaceAll(quoted, wildcardToken, "(.+)")
	delimited := "#" + quoted + "#i"
	if strings.HasPrefix(delimited, `#http\://`) {
		delimited = `#https?\://` + strings.TrimPrefix(delimited, `#http\://`)
	}
	return delimited
}

// Compile turns a delimited pattern into a Go regular expression. Supported flags
// are i, m, s and U; x and u are accepted and ignored.
func Compile(delimited string) (*regexp.Regexp, error) {
	if len(delimited) < 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformed, delimited)
	}
	delim := delimited[0]
	if isAlnum(delim) || delim == '\\' || delim == ' ' {
		return nil, fmt.Errorf("%w: invalid delimiter in %q", ErrMalformed, delimited)
	}
	closing := closingDelimiter(delim)
	end := strings.LastIndexByte(delimited, closing)
	if end <= 0 {
		return nil, fmt.Errorf("%w: missing closing delimiter in %q", ErrMalformed, delimited)
	}
	body := delimited[1:end]
	flags := delimited[end+1:]

	var goFlags strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's', 'U':
			goFlags.WriteRune(f)
		case 'x', 'u', 'D':
		default:
			return nil, fmt.Errorf("%w: unsupported flag %q in %q", ErrMalformed, f, delimited)
		}
	}
	expr := body
	if goFlags.Len() > 0 {
		expr = "(?" + goFlags.String() + ")" + body
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", delimited, err)
	}
	return re, nil
}

func closingDelimiter(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	case '{':
		return '}'
	case '<':
		return '>'
	default:
		return open
	}
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
