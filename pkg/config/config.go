package config

import "time"

// Config is the root configuration structure for Synapses.
// It contains all configuration sections for the gateway server, provider
// routing, health monitoring, rate limiting, context resolution, and
// telemetry settings.
type Config struct {
	// Server contains HTTP gateway server configuration including listen
	// address, timeouts, and request size limits.
	Server ServerConfig `yaml:"server"`

	// Providers contains per-provider overrides keyed by provider name
	// (e.g. "openai", "vertex"). Providers not listed here use the
	// built-in registry defaults.
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Executor contains configuration for request execution including the
	// fallback model and completion timeouts.
	Executor ExecutorConfig `yaml:"executor"`

	// Health contains configuration for the provider health monitor.
	Health HealthConfig `yaml:"health"`

	// RateLimit contains configuration for the credential-validation
	// rate limiter.
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Context contains configuration for the program documentation
	// context store.
	Context ContextConfig `yaml:"context"`

	// Telemetry contains configuration for logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP gateway server.
type ServerConfig struct {
	// ListenAddress is the address and port for the gateway to listen on.
	// Format: "host:port" (e.g. "127.0.0.1:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Must be generous enough to cover long streamed completions.
	// Default: 300s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next
	// request when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the size of request bodies. Requests exceeding
	// this limit are rejected with a 413 response.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// ProviderConfig contains per-provider overrides for the built-in registry.
type ProviderConfig struct {
	// BaseURL overrides the provider's API endpoint base URL.
	BaseURL string `yaml:"base_url"`

	// DefaultModel overrides the model used when a request names the
	// provider without a model.
	DefaultModel string `yaml:"default_model"`

	// Timeout is the maximum duration for completion requests to this
	// provider. Zero means the executor default applies.
	Timeout time.Duration `yaml:"timeout"`
}

// ExecutorConfig contains configuration for the request executor.
type ExecutorConfig struct {
	// FallbackModel is the composite model id (e.g. "openrouter/gpt-4o")
	// tried once when the primary model fails. Empty disables fallback.
	// Default: "openrouter/openai/gpt-4o-mini"
	FallbackModel string `yaml:"fallback_model"`

	// CompletionTimeout is the default timeout for provider completion
	// calls. Generation can be slow, so this is deliberately generous.
	// Default: 120s
	CompletionTimeout time.Duration `yaml:"completion_timeout"`

	// StreamingModels lists the models for which streaming is enabled.
	// Streaming is opt-in per model; a request with stream=true against a
	// model not listed here is executed without streaming. Entries are
	// composite model ids, or "<provider>/*" to enable all models of a
	// provider.
	StreamingModels []string `yaml:"streaming_models"`
}

// HealthConfig contains configuration for the provider health monitor.
type HealthConfig struct {
	// ProbeInterval is how often the background credential probe runs.
	// Default: 5m
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ProbeTimeout bounds each individual probe.
	// Default: 10s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// FailureThreshold is the number of consecutive failures after which a
	// provider is marked unavailable.
	// Default: 3
	FailureThreshold int `yaml:"failure_threshold"`

	// LastResortProvider is returned by best-provider selection when no
	// provider is healthy. The system never refuses to attempt a request.
	// Default: "openrouter"
	LastResortProvider string `yaml:"last_resort_provider"`
}

// RateLimitConfig contains configuration for the credential-validation
// rate limiter.
type RateLimitConfig struct {
	// Window is the attempt window duration per caller identity.
	// Default: 15m
	Window time.Duration `yaml:"window"`

	// MaxAttempts is the number of validation attempts allowed per window.
	// Default: 5
	MaxAttempts int `yaml:"max_attempts"`
}

// ContextConfig contains configuration for the program context store.
type ContextConfig struct {
	// DocsDir is the directory holding locally materialized per-program
	// context files named "<program>-context.txt".
	// Default: "./context"
	DocsDir string `yaml:"docs_dir"`

	// RemoteDocs maps program ids to remote documentation URLs. Programs
	// listed here are fetched remotely before the local file is consulted.
	RemoteDocs map[string]string `yaml:"remote_docs"`

	// FetchTimeout bounds remote documentation fetches. This is
	// independent of the completion timeout since it gates request start.
	// Default: 15s
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// WatchDocs enables filesystem watching of DocsDir. Changed or removed
	// context files invalidate their cache entries.
	// Default: true
	WatchDocs bool `yaml:"watch_docs"`

	// Retrieval configures the optional relevance-ranked retrieval
	// collaborator. Failures here always fall back to the full-document
	// chain and never surface to callers.
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// RetrievalConfig contains configuration for the external retrieval service.
type RetrievalConfig struct {
	// Endpoint is the retrieval service URL. Empty disables retrieval.
	Endpoint string `yaml:"endpoint"`

	// TopK is the number of chunks requested per query.
	// Default: 8
	TopK int `yaml:"top_k"`

	// MaxTokens bounds the size of the returned context.
	// Default: 4096
	MaxTokens int `yaml:"max_tokens"`

	// Timeout bounds each retrieval call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// RedactCredentials enables automatic redaction of API keys and other
	// secret material in log output.
	// Default: true
	RedactCredentials bool `yaml:"redact_credentials"`
}

// MetricsConfig contains prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the /metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Namespace is the prometheus metric namespace.
	// Default: "synapses"
	Namespace string `yaml:"namespace"`
}
