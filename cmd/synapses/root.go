package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "synapses",
	Short: "Synapses - unified LLM routing and resilience gateway",
	Long: `Synapses is a routing and resilience gateway for LLM chat traffic.

It exposes an OpenAI-compatible chat completions endpoint and routes each
request to the right provider behind a single surface, providing:
  - Composite model routing (OpenAI, Mistral, DeepSeek, OpenRouter, Vertex)
  - Credential resolution from the environment and per-request overrides
  - Per-program documentation context injection
  - Provider health tracking with single-hop fallback
  - SSE streaming with clean client-cancellation handling`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
