package provider

import (
	"errors"
	"fmt"
)

// RateLimitExhaustedError is returned when every credential in the pool was
// throttled for the allowed number of cooldown rounds. It is fatal for the
// target that triggered it, not for the run.
type RateLimitExhaustedError struct {
	Provider string
	Target   string
	Keys     int
	Rounds   int
}

func (e *RateLimitExhaustedError) Error() string {
	return fmt.Sprintf("%s: rate limit exhausted for %s after %d keys over %d cooldown rounds",
		e.Provider, e.Target, e.Keys, e.Rounds)
}

// SchemaError is returned when a provider response does not have the shape
// expected for the requested domain. It signals a bad target or a provider
// contract change, so retrying with another credential would not help.
type SchemaError struct {
	Provider string
	Target   string
	Reason   string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: unexpected response shape for %s: %s", e.Provider, e.Target, e.Reason)
}

// NetworkError wraps transport-level failures (timeouts, connection resets,
// unexpected HTTP status) after the bounded per-credential retries were
// spent.
type NetworkError struct {
	Provider string
	Target   string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure for %s: %v", e.Provider, e.Target, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Kind names a fetch error's category for summaries and log fields.
func Kind(err error) string {
	var rateErr *RateLimitExhaustedError
	var schemaErr *SchemaError
	var netErr *NetworkError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &rateErr):
		return "rate_limit_exhausted"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "other"
	}
}
