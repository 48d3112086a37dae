package apiclient

import (
	"errors"
	"fmt"
)

// Error is returned for every failed call. StatusCode is 0 when the request never got a
// response (DNS, connection refused, timeout, cancelled context).
type Error struct {
	StatusCode int
	// Message is the server's own explanation, taken from the JSON body's message (or error) field.
	Message string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("api: request failed: %v", e.Cause)
	case e.Message != "":
		return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("api: status %d: %v", e.StatusCode, e.Cause)
	default:
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsTransport reports whether err is a failure to reach the server at all.
func IsTransport(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == 0
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// MessageOr returns the server-provided message carried by err, or fallback when there is none.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
