package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ValidationError is a malformed mutation. It is rejected before it reaches the
// queue and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// NewValidationError is a shorthand used by the intake paths.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TimeoutError means a single attempt exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %s", e.Timeout)
}

// NetworkError wraps a transport failure such as a refused connection or a DNS error.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError is a 5xx answer from the remote.
type ServerError struct {
	StatusCode int
	Body       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d: %s", e.StatusCode, e.Body)
}

// ClientError is a 4xx answer from the remote. It is surfaced, never retried.
type ClientError struct {
	StatusCode int
	Body       string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error: status %d: %s", e.StatusCode, e.Body)
}

// CircuitOpenError is returned without touching the network while a circuit is open.
type CircuitOpenError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q is open, retry after %s", e.Key, e.RetryAfter)
}

// IsRetryable reports whether err is worth another automatic attempt: timeouts,
// network failures and server errors are; everything else is not.
func IsRetryable(err error) bool {
	var (
		timeoutErr *TimeoutError
		netErr     *NetworkError
		serverErr  *ServerError
	)
	switch {
	case err == nil:
		return false
	case errors.As(err, &timeoutErr), errors.As(err, &netErr), errors.As(err, &serverErr):
		return true
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

// IsCircuitOpen reports whether err is a circuit rejection.
func IsCircuitOpen(err error) bool {
	var openErr *CircuitOpenError
	return errors.As(err, &openErr)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
