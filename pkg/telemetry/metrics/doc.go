// Package metrics exposes the gateway's Prometheus instrumentation: provider
// availability and latency, fallback and unrecognized-provider counters,
// context cache activity, and credential validation outcomes.
package metrics
