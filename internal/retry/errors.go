// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package retry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// ErrorKind is the failure class that drives retry decisions.
type ErrorKind string

const (
	KindTransientNetwork  ErrorKind = "transient_network"
	KindRateLimited       ErrorKind = "rate_limited"
	KindServerUnavailable ErrorKind = "server_unavailable"
	KindProtocol          ErrorKind = "protocol_error"
	KindNonRetryable      ErrorKind = "non_retryable"
)

// ParseKind converts a configuration string into an ErrorKind.
func ParseKind(s string) (ErrorKind, error) {
	switch k := ErrorKind(s); k {
	case KindTransientNetwork, KindRateLimited, KindServerUnavailable, KindProtocol, KindNonRetryable:
		return k, nil
	default:
		return "", fmt.Errorf("unknown error kind %q", s)
	}
}

// Error attaches an explicit ErrorKind to an underlying failure. Callers use
// Mark when they know better than Classify's generic rules.
type Error struct {
	Kind ErrorKind
	Err  error
}

// Mark wraps err with kind. A nil err stays nil.
func Mark(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError reports a non-success HTTP status from a remote service.
type StatusError struct {
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error { return e.Err }

// ExhaustedError is returned when every allowed attempt failed with a
// retryable error. It unwraps to the last failure.
type ExhaustedError struct {
	Attempts int
	Kind     ErrorKind
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts (%s): %v", e.Attempts, e.Kind, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err carries an ExhaustedError.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(code int) ErrorKind {
	switch code {
	case http.StatusForbidden:
		return KindProtocol
	case http.StatusRequestTimeout:
		return KindTransientNetwork
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindServerUnavailable
	default:
		return KindNonRetryable
	}
}

// Classify assigns an ErrorKind to err. Explicit marks win, then HTTP
// status, then network-level failures. Everything unrecognised, including
// cancellation, is non-retryable.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var marked *Error
	if errors.As(err, &marked) {
		return marked.Kind
	}

	var status *StatusError
	if errors.As(err, &status) {
		return KindForStatus(status.StatusCode)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindNonRetryable
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE):
		return KindTransientNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTransientNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransientNetwork
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindTransientNetwork
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return KindProtocol
	}

	return KindNonRetryable
}
