package embed

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOptionCombination marks requests whose options contradict each other.
	ErrInvalidOptionCombination = errors.New("invalid option combination")
	// ErrNoProviderFound is wrapped by NoProviderError.
	ErrNoProviderFound = errors.New("no oembed provider found")
	// ErrFetchFailed is wrapped by FetchError.
	ErrFetchFailed = errors.New("oembed fetch failed")
	// ErrNoCachePost is returned when no oembed_cache post matches a URL.
	ErrNoCachePost = errors.New("No cache post ID found!") //nolint:staticcheck // printed verbatim by the CLI
	// ErrPostNotFound is returned when a referenced post does not exist.
	ErrPostNotFound = errors.New("post not found")
	// ErrUncacheablePostType is returned when a post type does not take cached embeds.
	ErrUncacheablePostType = errors.New("uncacheable post type")
)

// OptionError explains why a request was rejected.
type OptionError struct {
	Reason string
}

func (e *OptionError) Error() string {
	return e.Reason
}

// Unwrap exposes ErrInvalidOptionCombination.
func (e *OptionError) Unwrap() error {
	return ErrInvalidOptionCombination
}

// NoProviderError reports that neither the registry nor discovery matched the URL.
type NoProviderError struct {
	// Discover is true when discovery was enabled for the failed lookup.
	Discover bool
}

func (e *NoProviderError) Error() string {
	msg := "No oEmbed provider found for given URL."
	if e.Discover {
		msg += " Maybe try discovery?"
	}
	return msg
}

// Unwrap exposes ErrNoProviderFound.
func (e *NoProviderError) Unwrap() error {
	return ErrNoProviderFound
}

// FetchError reports a failed remote fetch or an unusable provider payload.
type FetchError struct {
	Cause error
}

func (e *FetchError) Error() string {
	return "There was an error fetching the oEmbed data."
}

// Unwrap exposes ErrFetchFailed and the underlying cause.
func (e *FetchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrFetchFailed}
	}
	return []error{ErrFetchFailed, e.Cause}
}

// PostError names a missing post.
type PostError struct {
	ID int64
}

func (e *PostError) Error() string {
	return fmt.Sprintf("Post %d does not exist!", e.ID)
}

// Unwrap exposes ErrPostNotFound.
func (e *PostError) Unwrap() error {
	return ErrPostNotFound
}

// PostTypeError names a post type that cannot hold cached embeds.
type PostTypeError struct {
	PostType string
}

func (e *PostTypeError) Error() string {
	return fmt.Sprintf("Cannot cache oEmbed results for %s post type", e.PostType)
}

// Unwrap exposes ErrUncacheablePostType.
func (e *PostTypeError) Unwrap() error {
	return ErrUncacheablePostType
}
