// Synapses is a unified routing and resilience gateway for LLM chat traffic.
//
// It exposes an OpenAI-compatible chat completions endpoint and routes each
// request to the right provider behind a single surface, providing:
//   - Composite model routing (OpenAI, Mistral, DeepSeek, OpenRouter, Vertex)
//   - Credential resolution from the environment and per-request overrides
//   - Per-program documentation context injection
//   - Provider health tracking with single-hop fallback
//   - SSE streaming with clean client-cancellation handling
//
// Usage:
//
//	# Start the gateway with default configuration
//	synapses run
//
//	# Start with a custom configuration file
//	synapses run --config /path/to/config.yaml
//
//	# Validate a configuration file without starting
//	synapses validate
//
//	# Show version information
//	synapses version
package main

func main() {
	Execute()
}
