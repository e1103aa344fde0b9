package common

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Extraction error kinds. ErrUnsupportedFormat is the only error the factory
// surfaces to its caller; everything else is swallowed into the result or
// triggers the next handler tier.
var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNativeUnavailable = errors.New("native automation unavailable")
	ErrParseFailure      = errors.New("parse failure")
	ErrInvalidInput      = errors.New("invalid input")
)

// RemoteStatusError carries the HTTP status of a failed remote-service call.
type RemoteStatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *RemoteStatusError) Error() string {
	return fmt.Sprintf("%s: remote status %d: %s", e.Service, e.Status, truncate(e.Body, 256))
}

// TransientError marks a transport-level failure (timeout, connection reset)
// as retriable regardless of its concrete cause.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient: %v", e.Cause) }
func (e *TransientError) Unwrap() error { return e.Cause }

// Retriable reports whether a remote call failure should be retried:
// rate limiting (429) and transport timeouts/resets. Anything else is terminal.
func Retriable(err error) bool {
	var rs *RemoteStatusError
	if errors.As(err, &rs) {
		return rs.Status == http.StatusTooManyRequests
	}
	var tr *TransientError
	if errors.As(err, &tr) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
