package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// Booleans that default to true are preset before unmarshaling so that
// omitting them keeps the default, then remaining defaults are applied and
// the result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := &Config{
		Context: ContextConfig{WatchDocs: true},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{RedactCredentials: true},
			Metrics: MetricsConfig{Enabled: true},
		},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SYNAPSES_SECTION_FIELD (e.g. SYNAPSES_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.ListenAddress, "SYNAPSES_SERVER_LISTEN_ADDRESS")
	setDuration(&cfg.Server.ReadTimeout, "SYNAPSES_SERVER_READ_TIMEOUT")
	setDuration(&cfg.Server.WriteTimeout, "SYNAPSES_SERVER_WRITE_TIMEOUT")
	setDuration(&cfg.Server.IdleTimeout, "SYNAPSES_SERVER_IDLE_TIMEOUT")
	setInt64(&cfg.Server.MaxBodyBytes, "SYNAPSES_SERVER_MAX_BODY_BYTES")

	setString(&cfg.Executor.FallbackModel, "SYNAPSES_EXECUTOR_FALLBACK_MODEL")
	setDuration(&cfg.Executor.CompletionTimeout, "SYNAPSES_EXECUTOR_COMPLETION_TIMEOUT")

	setDuration(&cfg.Health.ProbeInterval, "SYNAPSES_HEALTH_PROBE_INTERVAL")
	setDuration(&cfg.Health.ProbeTimeout, "SYNAPSES_HEALTH_PROBE_TIMEOUT")
	setInt(&cfg.Health.FailureThreshold, "SYNAPSES_HEALTH_FAILURE_THRESHOLD")
	setString(&cfg.Health.LastResortProvider, "SYNAPSES_HEALTH_LAST_RESORT_PROVIDER")

	setDuration(&cfg.RateLimit.Window, "SYNAPSES_RATE_LIMIT_WINDOW")
	setInt(&cfg.RateLimit.MaxAttempts, "SYNAPSES_RATE_LIMIT_MAX_ATTEMPTS")

	setString(&cfg.Context.DocsDir, "SYNAPSES_CONTEXT_DOCS_DIR")
	setDuration(&cfg.Context.FetchTimeout, "SYNAPSES_CONTEXT_FETCH_TIMEOUT")
	setString(&cfg.Context.Retrieval.Endpoint, "SYNAPSES_CONTEXT_RETRIEVAL_ENDPOINT")
	setInt(&cfg.Context.Retrieval.TopK, "SYNAPSES_CONTEXT_RETRIEVAL_TOP_K")
	setDuration(&cfg.Context.Retrieval.Timeout, "SYNAPSES_CONTEXT_RETRIEVAL_TIMEOUT")

	setString(&cfg.Telemetry.Logging.Level, "SYNAPSES_LOG_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "SYNAPSES_LOG_FORMAT")
}

func setString(dst *string, env string) {
	if val := os.Getenv(env); val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, env string) {
	if val := os.Getenv(env); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, env string) {
	if val := os.Getenv(env); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func setInt64(dst *int64, env string) {
	if val := os.Getenv(env); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}
