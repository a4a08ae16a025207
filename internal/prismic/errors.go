package prismic

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no document matches a UID.
	ErrNotFound = errors.New("document not found")
	// ErrForeignCursor is returned for pagination URLs that do not point at
	// the configured API host.
	ErrForeignCursor = errors.New("pagination url is not on the content api host")
)

// FetchError reports a transport failure or a non-2xx response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a response body that does not have the expected shape.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
