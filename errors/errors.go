// Package errors provides error handling for lineage.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing messages
//
// On top of that it defines the lineage error taxonomy:
//
//	ErrMalformedToken     unparseable object reference (skipped during traversal, never fatal)
//	ErrRemoteUnavailable  retry budget exhausted against the remote table service
//	ErrProtocolMismatch   the remote response does not have the expected shape
//	ErrNotFound           a name lookup matched no row
//
// An empty ancestry result is not an error: selectors return an empty slice and nil.
//
// Usage:
//
//	if err := client.SelectAll(ctx, req); err != nil {
//	    if errors.IsRemoteUnavailable(err) {
//	        // skip this start token, keep going
//	    }
//	    return errors.Wrap(err, "load sys_process")
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors. Check with errors.Is(); wrap with errors.Wrap() to add context.
var (
	// ErrMalformedToken indicates an object reference that is not a "collection:id" pair
	ErrMalformedToken = New("malformed token")

	// ErrRemoteUnavailable indicates the remote table service could not be reached
	// within the retry budget
	ErrRemoteUnavailable = New("remote unavailable")

	// ErrProtocolMismatch indicates a response that violates the expected schema
	ErrProtocolMismatch = New("protocol mismatch")

	// ErrNotFound indicates the requested object does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// HTTPStatusError is a non-2xx reply from the remote service.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// Retryable reports whether the status is transient. 408 and any 5xx are
// retried; every other 4xx is a caller error and propagates immediately.
func (e *HTTPStatusError) Retryable() bool {
	return e.StatusCode == 408 || e.StatusCode >= 500
}

// Timeout reports whether the status is a request or gateway timeout.
func (e *HTTPStatusError) Timeout() bool {
	return e.StatusCode == 408 || e.StatusCode == 504
}

// RemoteUnavailable marks cause as ErrRemoteUnavailable while keeping it
// reachable through errors.Is / errors.As.
func RemoteUnavailable(cause error, attempts int, url string) error {
	err := Wrapf(cause, "remote unavailable after %d attempts", attempts)
	err = Mark(err, ErrRemoteUnavailable)
	return WithDetailf(err, "url: %s", url)
}

// ProtocolMismatch builds an ErrProtocolMismatch describing what was expected.
func ProtocolMismatch(endpoint, expected string) error {
	err := Wrapf(ErrProtocolMismatch, "%s: expected %s", endpoint, expected)
	return WithHint(err, "the remote schema may have drifted; check the service version")
}

// MalformedToken builds an ErrMalformedToken for the given raw value.
func MalformedToken(raw string) error {
	return Wrapf(ErrMalformedToken, "%q", raw)
}

// IsMalformedToken checks if an error is or wraps ErrMalformedToken
func IsMalformedToken(err error) bool {
	return err != nil && Is(err, ErrMalformedToken)
}

// IsRemoteUnavailable checks if an error is or wraps ErrRemoteUnavailable
func IsRemoteUnavailable(err error) bool {
	return err != nil && Is(err, ErrRemoteUnavailable)
}

// IsProtocolMismatch checks if an error is or wraps ErrProtocolMismatch
func IsProtocolMismatch(err error) bool {
	return err != nil && Is(err, ErrProtocolMismatch)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// AsHTTPStatus extracts the HTTPStatusError in err's chain, if any.
func AsHTTPStatus(err error) (*HTTPStatusError, bool) {
	var statusErr *HTTPStatusError
	if As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
