// Package executor routes chat completions through provider adapters with
// documentation context injection, health reporting, and a single fallback
// hop when the primary route fails. The streaming bridge converts provider
// chunk channels into outbound frames with clean cancellation semantics.
package executor
