package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrRateLimited marks provider rate-limit signals
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyResponse is returned when a provider answers with no text
	ErrEmptyResponse = errors.New("empty response")
)

// RateLimitError is returned by providers when the upstream signals a rate limit
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration // zero when the provider gave no hint
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: rate limited: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: rate limited", e.Provider)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRateLimited) match
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// IsRateLimited reports whether err carries a rate-limit signal
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// parseRetryAfter reads a Retry-After header given in seconds
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
