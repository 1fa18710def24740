package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies page model failures for the retry policy.
type ErrorKind string

// Fetch error kinds. Network errors are transient and retried with backoff;
// parse errors and render timeouts are reported but may clear up on a later
// run, so the item is left unprocessed either way.
const (
	KindNetwork       ErrorKind = "network"
	KindParse         ErrorKind = "parse"
	KindRenderTimeout ErrorKind = "render-timeout"
)

// FetchError is a typed failure returned by the page model.
type FetchError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error fetching %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchError wraps err with a kind and the URL being fetched.
func NewFetchError(kind ErrorKind, url string, err error) *FetchError {
	return &FetchError{Kind: kind, URL: url, Err: err}
}

// FieldError is a structural validation failure naming the offending field.
// It is never retried within a run; the item stays unprocessed and becomes
// eligible again on the next run.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// IsTransient reports whether err is worth retrying within the attempt
// budget: network failures and timeouts, but not context cancellation,
// validation failures, or parse errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return false
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind == KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// FailureCause renders the short cause string stored in the operation log.
func FailureCause(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind)
	}
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
