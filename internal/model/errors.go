package model

import (
	"fmt"
	"time"

	"github.com/maxbolgarin/errm"
)

// ErrMalformedOutput is returned when the provider response is not a JSON
// object of the expected shape or carries no content at all.
var ErrMalformedOutput = errm.New("malformed model output")

// RateLimitError is returned on a provider 429. WaitFor carries the suggested
// wait parsed from the error payload.
type RateLimitError struct {
	WaitFor time.Duration
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, try again in %s: %s", e.WaitFor, e.Message)
}

// TransportError is returned on network failures, timeouts and non-2xx
// responses other than 429. StatusCode is zero when no response was received.
type TransportError struct {
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return "transport error: " + e.Message
	}
	return fmt.Sprintf("transport error (status %d): %s", e.StatusCode, e.Message)
}

// ExhaustedError is returned by the analyzer after every model in the
// fallback chain failed for one code unit.
type ExhaustedError struct {
	Unit string
	Last error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all models exhausted for %s: %v", e.Unit, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
