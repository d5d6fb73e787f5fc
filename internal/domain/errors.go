package domain

import "errors"

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// Credential errors. A missing header is rejected before any
	// verification, a present-but-bad one after.
	ErrMissingCredential = errors.New("no token provided")
	ErrInvalidCredential = errors.New("invalid token")

	// ErrUpstreamUnavailable wraps transport failures talking to the proxied application.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
	ErrConfigInvalid  = errors.New("invalid configuration")
)

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Credential failures are never retryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsCredentialError returns true if err is one of the two gate rejections.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidCredential)
}
