package config

import "time"

// Default values applied to zero-valued configuration fields.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 300 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = 1 << 20

	DefaultFallbackModel     = "openrouter/openai/gpt-4o-mini"
	DefaultCompletionTimeout = 120 * time.Second

	DefaultProbeInterval    = 5 * time.Minute
	DefaultProbeTimeout     = 10 * time.Second
	DefaultFailureThreshold = 3
	DefaultLastResort       = "openrouter"

	DefaultRateLimitWindow   = 15 * time.Minute
	DefaultRateLimitMax      = 5
	DefaultDocsDir           = "./context"
	DefaultFetchTimeout      = 15 * time.Second
	DefaultRetrievalTopK     = 8
	DefaultRetrievalMaxToken = 4096
	DefaultRetrievalTimeout  = 10 * time.Second

	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "synapses"
)

// ApplyDefaults fills zero-valued fields with default values.
// It is called by LoadConfig before validation so a minimal (or empty)
// configuration file yields a fully usable configuration.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Executor defaults
	if cfg.Executor.FallbackModel == "" {
		cfg.Executor.FallbackModel = DefaultFallbackModel
	}
	if cfg.Executor.CompletionTimeout == 0 {
		cfg.Executor.CompletionTimeout = DefaultCompletionTimeout
	}

	// Health defaults
	if cfg.Health.ProbeInterval == 0 {
		cfg.Health.ProbeInterval = DefaultProbeInterval
	}
	if cfg.Health.ProbeTimeout == 0 {
		cfg.Health.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Health.FailureThreshold == 0 {
		cfg.Health.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Health.LastResortProvider == "" {
		cfg.Health.LastResortProvider = DefaultLastResort
	}

	// Rate limit defaults
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.RateLimit.MaxAttempts == 0 {
		cfg.RateLimit.MaxAttempts = DefaultRateLimitMax
	}

	// Context defaults
	if cfg.Context.DocsDir == "" {
		cfg.Context.DocsDir = DefaultDocsDir
	}
	if cfg.Context.FetchTimeout == 0 {
		cfg.Context.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.Context.Retrieval.TopK == 0 {
		cfg.Context.Retrieval.TopK = DefaultRetrievalTopK
	}
	if cfg.Context.Retrieval.MaxTokens == 0 {
		cfg.Context.Retrieval.MaxTokens = DefaultRetrievalMaxToken
	}
	if cfg.Context.Retrieval.Timeout == 0 {
		cfg.Context.Retrieval.Timeout = DefaultRetrievalTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}

// NewDefaultConfig returns a configuration with all default values applied.
// Useful for tests and for running without a configuration file.
func NewDefaultConfig() *Config {
	cfg := &Config{
		Context: ContextConfig{
			WatchDocs: true,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactCredentials: true},
			Metrics: MetricsConfig{Enabled: true},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
