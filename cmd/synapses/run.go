package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/CMBAgents/synapses/pkg/config"
	"github.com/CMBAgents/synapses/pkg/contextstore"
	"github.com/CMBAgents/synapses/pkg/executor"
	"github.com/CMBAgents/synapses/pkg/gateway"
	"github.com/CMBAgents/synapses/pkg/health"
	"github.com/CMBAgents/synapses/pkg/limits/ratelimit"
	"github.com/CMBAgents/synapses/pkg/providers"
	"github.com/CMBAgents/synapses/pkg/providers/openai"
	"github.com/CMBAgents/synapses/pkg/providers/vertex"
	"github.com/CMBAgents/synapses/pkg/server"
	"github.com/CMBAgents/synapses/pkg/telemetry/logging"
	"github.com/CMBAgents/synapses/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Synapses gateway server",
	Long: `Start the Synapses gateway server with the specified configuration.

The server listens on the configured address and routes chat completion
requests to the configured providers, with health-aware fallback, context
injection, and credential validation.

Examples:
  # Start with default config
  synapses run

  # Start with custom config
  synapses run --config /etc/synapses/config.yaml

  # Override listen address
  synapses run --listen 0.0.0.0:8080

  # Validate config without starting the server
  synapses run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:             cfg.Telemetry.Logging.Level,
		Format:            cfg.Telemetry.Logging.Format,
		RedactCredentials: cfg.Telemetry.Logging.RedactCredentials,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	logger.Info("starting synapses",
		"version", Version,
		"config", cfgFile,
	)

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Telemetry.Metrics.Namespace)
	}

	registry := providers.NewRegistry()
	for key, pc := range cfg.Providers {
		registry.Override(key, pc.BaseURL, pc.DefaultModel)
	}

	resolver := providers.NewResolver(registry, logger,
		providers.WithUnrecognizedHook(collector.RecordUnrecognizedProvider),
	)

	healthReg := health.NewRegistry(
		cfg.Health.FailureThreshold,
		cfg.Health.LastResortProvider,
		logger,
		health.WithTransitionHook(collector.SetProviderAvailable),
	)

	httpClient := providers.NewHTTPClient()
	dialer := newDialer(httpClient)

	prober := health.NewProber(
		healthReg,
		probeTargets(registry, resolver),
		credentialProbe(resolver),
		cfg.Health.ProbeInterval,
		cfg.Health.ProbeTimeout,
		logger,
	)
	if err := prober.Start(); err != nil {
		return fmt.Errorf("failed to start health prober: %w", err)
	}
	defer prober.Stop()

	fetcher := contextstore.NewFetcher(cfg.Context.RemoteDocs, cfg.Context.DocsDir, cfg.Context.FetchTimeout, logger)
	store := contextstore.NewStore(fetcher, logger, collector)

	var retrieval *contextstore.RetrievalClient
	if cfg.Context.Retrieval.Endpoint != "" {
		retrieval = contextstore.NewRetrievalClient(
			cfg.Context.Retrieval.Endpoint,
			cfg.Context.Retrieval.TopK,
			cfg.Context.Retrieval.MaxTokens,
			cfg.Context.Retrieval.Timeout,
			logger,
		)
	}

	if cfg.Context.WatchDocs {
		watcher, werr := contextstore.NewWatcher(store, cfg.Context.DocsDir, logger)
		if werr != nil {
			logger.Warn("context file watching disabled", "error", werr)
		} else {
			defer watcher.Close()
		}
	}

	exec := executor.New(resolver, dialer, healthReg, store, retrieval, collector, cfg.Executor, logger)
	bridge := executor.NewBridge(exec, logger)
	limiter := ratelimit.NewLimiter(cfg.RateLimit.Window, cfg.RateLimit.MaxAttempts)

	gw := gateway.New(exec, bridge, healthReg, limiter, resolver, dialer, collector, cfg.Server.MaxBodyBytes)
	srv := server.New(cfg.Server, gw, logger)

	return srv.Start(cmd.Context())
}

// newDialer builds provider adapters over one shared HTTP client. The
// dialect on the resolved identity picks the wire format.
func newDialer(httpClient *http.Client) providers.Dialer {
	return providers.DialerFunc(func(res *providers.Resolution) providers.Provider {
		if res.Identity.Dialect == providers.DialectVertex {
			return vertex.NewClient(res, httpClient)
		}
		return openai.NewClient(res, httpClient)
	})
}

// probeTargets returns the registry keys whose credentials resolve from the
// environment. Providers without credentials cannot be probed meaningfully.
func probeTargets(registry *providers.Registry, resolver *providers.Resolver) []string {
	var targets []string
	for _, key := range registry.Keys() {
		if _, err := resolver.Resolve(key, nil); err == nil {
			targets = append(targets, key)
		}
	}
	return targets
}

// credentialProbe checks that a provider's credentials still resolve from
// the environment. It makes no upstream call: probes run on a schedule, and
// a completion per cycle would burn cost and quota against every configured
// provider. Live credential checks belong to the validate endpoint, where a
// caller explicitly asks for one.
func credentialProbe(resolver *providers.Resolver) health.ProbeFunc {
	return func(ctx context.Context, provider string) error {
		_, err := resolver.Resolve(provider, nil)
		return err
	}
}
