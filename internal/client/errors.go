// SPDX-License-Identifier: MIT

package client

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrNotFound    = errors.New("server: resource not found")
	ErrUnavailable = errors.New("server: host unreachable or transport failure")
	ErrServerError = errors.New("server: internal error (5xx)")
	ErrBadResponse = errors.New("server: invalid response format or malformed data")
	ErrBadRequest  = errors.New("server: request rejected (4xx)")
	ErrTimeout     = errors.New("server: request timed out")
)

// APIError is a rich error type that wraps the sentinel errors with context.
type APIError struct {
	Sentinel  error
	Operation string
	Status    int
	Body      string
	Err       error // nested lower-level error (e.g. net.Error)
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("awserver: %s: %v", e.Operation, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() error {
	return e.Sentinel
}

// Retryable reports whether the error is worth retrying: transport failures,
// timeouts and 5xx responses. 4xx responses are permanent.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServerError)
}
