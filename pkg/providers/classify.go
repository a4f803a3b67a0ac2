package providers

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind is the failure taxonomy surfaced to callers.
type ErrorKind string

const (
	// KindCredentialsMissing: no credentials could be resolved (401).
	KindCredentialsMissing ErrorKind = "credentials_missing"

	// KindCredentialsInvalid: the provider rejected the credentials (401).
	KindCredentialsInvalid ErrorKind = "credentials_invalid"

	// KindModelUnavailable: the model is unknown or misconfigured (400).
	KindModelUnavailable ErrorKind = "model_unavailable"

	// KindRateLimited: too many attempts; carries a retry hint (429).
	KindRateLimited ErrorKind = "rate_limited"

	// KindRequestTooLarge: the payload exceeds provider limits (413).
	KindRequestTooLarge ErrorKind = "request_too_large"

	// KindProviderUnavailable: the provider (and any fallback) failed (502).
	KindProviderUnavailable ErrorKind = "provider_unavailable"

	// KindUnknown: anything not otherwise classified (500).
	KindUnknown ErrorKind = "unknown"
)

// Classify maps an error to its ErrorKind.
//
// Typed errors produced by this package are matched first via errors.As.
// For errors originating outside the typed chain (raw provider bodies,
// transport-level failures) it falls back to substring matching, which is
// best-effort and isolated here so it can be replaced with structured-field
// matching per provider without touching callers.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var missingErr *CredentialsMissingError
	if errors.As(err, &missingErr) {
		return KindCredentialsMissing
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return KindCredentialsInvalid
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return KindRateLimited
	}

	var modelErr *ModelError
	if errors.As(err, &modelErr) {
		return KindModelUnavailable
	}

	var tooLargeErr *RequestTooLargeError
	if errors.As(err, &tooLargeErr) {
		return KindRequestTooLarge
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return KindProviderUnavailable
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return classifyStatus(provErr.StatusCode)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindProviderUnavailable
	}

	return classifyText(err.Error())
}

// classifyStatus maps an HTTP status code to an ErrorKind.
func classifyStatus(status int) ErrorKind {
	switch {
	case status == 401 || status == 403:
		return KindCredentialsInvalid
	case status == 429:
		return KindRateLimited
	case status == 413:
		return KindRequestTooLarge
	case status == 400 || status == 404:
		return KindModelUnavailable
	case status >= 500:
		return KindProviderUnavailable
	default:
		return KindUnknown
	}
}

// classifyText is the substring fallback for untyped errors.
func classifyText(msg string) ErrorKind {
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "api key") && strings.Contains(lower, "missing"),
		strings.Contains(lower, "no credentials"):
		return KindCredentialsMissing

	case strings.Contains(lower, "unauthorized"),
		strings.Contains(lower, "invalid api key"),
		strings.Contains(lower, "incorrect api key"),
		strings.Contains(lower, "authentication"),
		strings.Contains(lower, "401"):
		return KindCredentialsInvalid

	case strings.Contains(lower, "rate limit"),
		strings.Contains(lower, "too many requests"),
		strings.Contains(lower, "quota"),
		strings.Contains(lower, "429"):
		return KindRateLimited

	case strings.Contains(lower, "maximum context length"),
		strings.Contains(lower, "context length"),
		strings.Contains(lower, "too large"),
		strings.Contains(lower, "413"):
		return KindRequestTooLarge

	case strings.Contains(lower, "model") &&
		(strings.Contains(lower, "not found") ||
			strings.Contains(lower, "does not exist") ||
			strings.Contains(lower, "unknown")):
		return KindModelUnavailable

	case strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "unavailable"),
		strings.Contains(lower, "bad gateway"),
		strings.Contains(lower, "overloaded"):
		return KindProviderUnavailable

	default:
		return KindUnknown
	}
}

// HTTPStatus returns the HTTP-equivalent status code for an ErrorKind.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindCredentialsMissing, KindCredentialsInvalid:
		return 401
	case KindModelUnavailable:
		return 400
	case KindRateLimited:
		return 429
	case KindRequestTooLarge:
		return 413
	case KindProviderUnavailable:
		return 502
	default:
		return 500
	}
}
