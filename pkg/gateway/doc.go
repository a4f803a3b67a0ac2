// Package gateway is the HTTP surface of the router: chat completions
// (JSON and SSE), the provider health snapshot, rate-limited credential
// validation, and the metrics endpoint, with request id, access log, and
// recovery middleware.
package gateway
