package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/CMBAgents/synapses/pkg/executor"
	"github.com/CMBAgents/synapses/pkg/limits/ratelimit"
	"github.com/CMBAgents/synapses/pkg/providers"
)

// writeError maps an error onto an HTTP status via the classifier and
// writes the JSON error envelope. Rate limit rejections get a Retry-After
// header.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := classify(err)
	status := kind.HTTPStatus()

	var rateLimited *ratelimit.LimitExceededError
	if errors.As(err, &rateLimited) {
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", rateLimited.RetryAfter.Seconds()))
	}
	var upstreamLimited *providers.RateLimitError
	if errors.As(err, &upstreamLimited) && upstreamLimited.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%.0f", upstreamLimited.RetryAfter.Seconds()))
	}

	if status >= 500 {
		logger.Error("request failed", "status", status, "kind", string(kind), "error", err)
	} else {
		logger.Info("request rejected", "status", status, "kind", string(kind), "error", err)
	}

	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Kind:    string(kind),
		Message: err.Error(),
	}})
}

// classify extends the provider classifier with gateway-local error types.
func classify(err error) providers.ErrorKind {
	var rateLimited *ratelimit.LimitExceededError
	if errors.As(err, &rateLimited) {
		return providers.KindRateLimited
	}

	// When both fallback routes failed, answer with the primary error's
	// classification; the fallback failure is detail for the body.
	var exhausted *executor.FallbackExhaustedError
	if errors.As(err, &exhausted) {
		return providers.Classify(exhausted.PrimaryErr)
	}

	return providers.Classify(err)
}

// writeJSON writes a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// The status line is already gone; nothing useful to do.
		slog.Debug("failed to encode response body", "error", err)
	}
}
