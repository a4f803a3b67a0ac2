// Package providers defines the provider-agnostic request and response
// types, the adapter interface, and the plumbing shared by all upstream
// adapters: the identity registry, the credential resolver, the pooled HTTP
// transport, and the typed error set with its classifier.
//
// Dialect-specific adapters live in the subpackages (openai, vertex) and
// build on this package's Transport.
package providers
