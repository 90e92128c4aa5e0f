package cache

import (
	"errors"
	"fmt"
)

// Sentinel errors for store and subscription operations.
var (
	ErrHandleNotFound = errors.New("cache: unknown subscription handle")
	ErrPatchPending   = errors.New("cache: entry already has a pending patch for this mutation")
)

// ConfigError represents a programming error in how the cache was configured
// or called: invalid configuration values, unserializable query parameters,
// tags with unregistered kinds. It should fail loudly at call time rather
// than be stored on an entry.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// NetworkError wraps a transport-level failure where no HTTP response was
// received. It is always recoverable: stored on the entry and surfaced to
// subscribers, never fatal to the caller.
type NetworkError struct {
	Endpoint string
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Endpoint, e.Err)
}

// Unwrap exposes the underlying transport error for errors.Is/As chains.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// HTTPError represents a non-2xx response from the backend. The original
// status code is retained so callers can distinguish validation failures
// from server faults.
type HTTPError struct {
	Endpoint string
	Status   int
	Body     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Status, e.Endpoint)
}

// Retryable reports whether the caller may reasonably retry the failed
// operation. Transport failures and 5xx responses qualify; 4xx responses
// and configuration errors do not. The cache itself never retries.
func Retryable(err error) bool {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status >= 500
	}
	return false
}
