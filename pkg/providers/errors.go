package providers

import (
	"fmt"
	"time"
)

// CredentialsMissingError is returned when neither the caller nor the
// process environment supplies a required credential field for a provider.
type CredentialsMissingError struct {
	// Provider is the provider key the credentials were resolved for
	Provider string

	// Field is the missing credential field (e.g. "apiKey")
	Field string
}

// Error implements the error interface.
func (e *CredentialsMissingError) Error() string {
	return fmt.Sprintf("missing credentials for provider %q: field %q not supplied and no environment default", e.Provider, e.Field)
}

// AuthError represents an authentication failure.
// This occurs when the provider rejects the credentials (HTTP 401 or 403).
type AuthError struct {
	// Provider is the name of the provider that rejected authentication
	Provider string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %q authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError represents a rate limit exceeded error (HTTP 429).
// It includes the retry-after duration if provided by the provider.
type RateLimitError struct {
	// Provider is the name of the provider that rate limited the request
	Provider string

	// RetryAfter is the duration to wait before retrying (if provided)
	RetryAfter time.Duration

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("provider %q rate limit exceeded (retry after %s): %s",
			e.Provider, e.RetryAfter, e.Message)
	}
	return fmt.Sprintf("provider %q rate limit exceeded: %s", e.Provider, e.Message)
}

// ModelError represents a rejected model selection (HTTP 400/404): the
// model is unknown to the provider or misconfigured for the request.
type ModelError struct {
	// Provider is the name of the provider
	Provider string

	// Model is the requested model identifier
	Model string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("provider %q rejected model %q: %s", e.Provider, e.Model, e.Message)
}

// RequestTooLargeError represents a request exceeding the provider's
// payload or context-window limits (HTTP 413, or a 400 naming the
// context length).
type RequestTooLargeError struct {
	// Provider is the name of the provider
	Provider string

	// Message is the error message from the provider
	Message string
}

// Error implements the error interface.
func (e *RequestTooLargeError) Error() string {
	return fmt.Sprintf("provider %q rejected request as too large: %s", e.Provider, e.Message)
}

// ProviderError represents a general provider failure (5xx, network).
type ProviderError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a request timeout.
type TimeoutError struct {
	// Provider is the name of the provider where the timeout occurred
	Provider string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// ParseError represents a response parsing failure.
type ParseError struct {
	// Provider is the name of the provider that returned the malformed response
	Provider string

	// RawResponse is the raw response body that failed to parse
	RawResponse string

	// Cause is the underlying parse error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("provider %q response parse error: %v", e.Provider, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// StreamError represents an error that occurred during streaming.
// It is delivered through the stream channel in the final chunk.
type StreamError struct {
	// Provider is the name of the provider where the error occurred
	Provider string

	// Message is the error message
	Message string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provider %q stream error: %s: %v", e.Provider, e.Message, e.Cause)
	}
	return fmt.Sprintf("provider %q stream error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *StreamError) Unwrap() error {
	return e.Cause
}
