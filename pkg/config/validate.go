package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidationError describes a single invalid configuration field.
type ValidationError struct {
	// Field is the dotted path of the invalid field (e.g. "server.listen_address").
	Field string

	// Message describes what is invalid about the field.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration field %q: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid values.
// It returns the first validation error encountered, or nil if the
// configuration is valid. Callers should run ApplyDefaults first.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Server.ListenAddress); err != nil {
		return &ValidationError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("must be host:port, got %q", cfg.Server.ListenAddress),
		}
	}
	if cfg.Server.MaxBodyBytes < 1024 {
		return &ValidationError{
			Field:   "server.max_body_bytes",
			Message: fmt.Sprintf("must be at least 1024, got %d", cfg.Server.MaxBodyBytes),
		}
	}

	if cfg.Executor.FallbackModel != "" && !strings.Contains(cfg.Executor.FallbackModel, "/") {
		return &ValidationError{
			Field:   "executor.fallback_model",
			Message: fmt.Sprintf("must be a composite \"<provider>/<model>\" id, got %q", cfg.Executor.FallbackModel),
		}
	}
	if cfg.Executor.CompletionTimeout < 0 {
		return &ValidationError{
			Field:   "executor.completion_timeout",
			Message: "must not be negative",
		}
	}

	if cfg.Health.FailureThreshold < 1 {
		return &ValidationError{
			Field:   "health.failure_threshold",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.Health.FailureThreshold),
		}
	}
	if cfg.Health.ProbeInterval <= 0 {
		return &ValidationError{
			Field:   "health.probe_interval",
			Message: "must be positive",
		}
	}
	if cfg.Health.ProbeTimeout <= 0 {
		return &ValidationError{
			Field:   "health.probe_timeout",
			Message: "must be positive",
		}
	}

	if cfg.RateLimit.Window <= 0 {
		return &ValidationError{
			Field:   "rate_limit.window",
			Message: "must be positive",
		}
	}
	if cfg.RateLimit.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "rate_limit.max_attempts",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.RateLimit.MaxAttempts),
		}
	}

	for program, rawURL := range cfg.Context.RemoteDocs {
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{
				Field:   fmt.Sprintf("context.remote_docs.%s", program),
				Message: fmt.Sprintf("must be an http(s) URL, got %q", rawURL),
			}
		}
	}
	if cfg.Context.Retrieval.Endpoint != "" {
		u, err := url.Parse(cfg.Context.Retrieval.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{
				Field:   "context.retrieval.endpoint",
				Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.Context.Retrieval.Endpoint),
			}
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Telemetry.Logging.Level),
		}
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Telemetry.Logging.Format),
		}
	}

	return nil
}
