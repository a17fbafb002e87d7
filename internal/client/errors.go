package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means the route's upstream key is absent. Checked
	// per request; the route fails closed without attempting the call.
	ErrMissingCredential = errors.New("missing upstream credential")

	// ErrUpstreamFailure covers network errors and non-2xx upstream responses.
	ErrUpstreamFailure = errors.New("upstream failure")

	// ErrUpstreamTimeout is an upstream call that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// UpstreamError carries the status and body of a non-2xx upstream response
// so handlers can relay both to the caller.
type UpstreamError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamFailure }
