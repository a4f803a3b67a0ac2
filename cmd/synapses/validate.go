package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CMBAgents/synapses/pkg/config"
	"github.com/CMBAgents/synapses/pkg/providers"
)

var validateFlags struct {
	checkCredentials bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load and validate the configuration file without starting the server.

Environment variable overrides (SYNAPSES_*) are applied before validation,
so the result reflects the configuration the server would actually run with.

Examples:
  # Validate the default config file
  synapses validate

  # Validate a specific config file
  synapses validate --config /etc/synapses/config.yaml

  # Also report which providers have credentials in the environment
  synapses validate --credentials`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.checkCredentials, "credentials", false, "report per-provider credential presence")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", cfgFile)
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddress)
	fmt.Printf("  Fallback model: %s\n", cfg.Executor.FallbackModel)
	fmt.Printf("  Docs directory: %s\n", cfg.Context.DocsDir)

	if !validateFlags.checkCredentials {
		return nil
	}

	registry := providers.NewRegistry()
	resolver := providers.NewResolver(registry, nil)

	fmt.Println("\nProvider credentials:")
	for _, key := range registry.Keys() {
		if _, rerr := resolver.Resolve(key, nil); rerr != nil {
			fmt.Printf("  ✗ %s: %v\n", key, rerr)
			continue
		}
		fmt.Printf("  ✓ %s\n", key)
	}
	return nil
}
