// Package openai implements the adapter for providers that speak the
// OpenAI-compatible chat completions API, including OpenAI, Mistral,
// DeepSeek, and the OpenRouter aggregator. It handles request and response
// transformation and SSE stream decoding.
package openai
