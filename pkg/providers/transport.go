package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Transport wraps a pooled *http.Client and maps upstream HTTP failures to
// the typed error set. Dialect adapters embed it so status handling stays in
// one place.
type Transport struct {
	// Name is the provider registry key, used in error values.
	Name string

	Client *http.Client
}

// NewHTTPClient creates an HTTP client with connection pooling tuned for
// long-lived streaming responses. The client carries no overall timeout;
// per-request deadlines come from the context so streams are not cut off
// mid-flight.
func NewHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return &http.Client{Transport: transport}
}

// Do sends a request and returns the response when the status is 2xx. Any
// other status is drained, closed, and converted into a typed error; the
// caller never sees a non-2xx response body.
func (t *Transport) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			deadline, _ := ctx.Deadline()
			return nil, &TimeoutError{
				Provider: t.Name,
				Timeout:  time.Until(deadline),
			}
		}
		return nil, &ProviderError{
			Provider: t.Name,
			Message:  "request failed",
			Cause:    err,
		}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	resp.Body.Close()

	return nil, t.statusError(resp, string(errorBody))
}

// DoJSON sends a request with Do and decodes a 2xx response body into out.
func (t *Transport) DoJSON(ctx context.Context, method, url string, body []byte, headers map[string]string, out any) error {
	resp, err := t.Do(ctx, method, url, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ProviderError{
			Provider: t.Name,
			Message:  "failed to read response body",
			Cause:    err,
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ParseError{
			Provider:    t.Name,
			RawResponse: string(raw),
			Cause:       err,
		}
	}
	return nil
}

// Close releases idle pooled connections.
func (t *Transport) Close() error {
	if tr, ok := t.Client.Transport.(*http.Transport); ok {
		tr.CloseIdleConnections()
	}
	return nil
}

// statusError maps a non-2xx upstream response to a typed error.
func (t *Transport) statusError(resp *http.Response, body string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Provider: t.Name, Message: body}

	case http.StatusTooManyRequests:
		return &RateLimitError{
			Provider:   t.Name,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    body,
		}

	case http.StatusRequestEntityTooLarge:
		return &RequestTooLargeError{Provider: t.Name, Message: body}

	case http.StatusBadRequest:
		// Providers report context-window overflow as a 400 naming the
		// context length rather than a 413.
		if mentionsContextLength(body) {
			return &RequestTooLargeError{Provider: t.Name, Message: body}
		}
		return &ModelError{Provider: t.Name, Message: body}

	case http.StatusNotFound:
		return &ModelError{Provider: t.Name, Message: body}

	default:
		return &ProviderError{
			Provider:   t.Name,
			StatusCode: resp.StatusCode,
			Message:    body,
		}
	}
}

// mentionsContextLength reports whether an error body names a
// context-window or token-limit overflow rather than a bad model.
func mentionsContextLength(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{
		"context length",
		"context_length",
		"maximum context",
		"token limit",
		"too many tokens",
	} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// parseRetryAfter interprets a Retry-After header value as a delay.
// Seconds and HTTP-date forms are both accepted; unparseable values
// fall back to a 60 second default.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 60 * time.Second
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 60 * time.Second
}
