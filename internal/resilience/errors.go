package resilience

import (
	"errors"
	"strings"
)

// RateLimitError wraps an upstream failure caused by rate limiting or
// overload. These are the only failures worth retrying: the request was
// fine, the service was not.
type RateLimitError struct {
	Err        error
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError wraps an error as retryable with an optional HTTP
// status code hint.
func NewRateLimitError(err error, statusCode int) *RateLimitError {
	return &RateLimitError{Err: err, StatusCode: statusCode}
}

// AuthError marks a credential failure. Never retried.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return e.Err.Error() + " (check credentials)"
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError wraps an error as an authentication failure.
func NewAuthError(err error) *AuthError {
	return &AuthError{Err: err}
}

// IsAuth reports whether the error chain contains an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// rateLimitPatterns are message substrings from upstream clients that signal
// overload without a typed error.
var rateLimitPatterns = []string{
	"overloaded",
	"rate limit",
	"rate_limit",
	"too many requests",
}

// IsRetryable reports whether an error signals rate limiting or overload:
// a RateLimitError in the chain, a 429 status hint, or a known message
// substring. Everything else, auth failures included, propagates
// unchanged to the caller.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsAuth(err) {
		return false
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") {
		return true
	}
	for _, p := range rateLimitPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
