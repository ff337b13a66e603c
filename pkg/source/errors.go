package source

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures. The scheduler treats kinds
// differently: forbidden shifts the source to a slower cadence, transient
// is retried within the cycle, parse is not retried until content changes.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindForbidden ErrorKind = "forbidden"
	KindParse     ErrorKind = "parse"
)

// FetchError is a typed per-source failure. It never aborts a cycle.
type FetchError struct {
	SourceID   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: %s (status %d): %v", e.SourceID, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.SourceID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewTransient wraps a timeout/connection-level failure.
func NewTransient(sourceID string, err error) *FetchError {
	return &FetchError{SourceID: sourceID, Kind: KindTransient, Err: err}
}

// NewForbidden wraps an HTTP 403 / rate-limit response.
func NewForbidden(sourceID string, status int, err error) *FetchError {
	return &FetchError{SourceID: sourceID, Kind: KindForbidden, StatusCode: status, Err: err}
}

// NewParse wraps a malformed feed or page.
func NewParse(sourceID string, err error) *FetchError {
	return &FetchError{SourceID: sourceID, Kind: KindParse, Err: err}
}

// Kind returns the error kind for a fetch error, or KindTransient for
// anything untyped.
func Kind(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}

// StatusCode returns the HTTP status attached to a fetch error, if any.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}

// IsForbidden reports whether err is an HTTP 403 / rate-limit failure.
func IsForbidden(err error) bool { return Kind(err) == KindForbidden }

// Retryable reports whether the cycle should retry this failure.
// Forbidden responses are never retried within a cycle (retrying invites
// further blocking) and parse failures stay broken until content changes.
func Retryable(err error) bool { return Kind(err) == KindTransient }
