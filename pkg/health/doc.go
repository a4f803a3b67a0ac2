// Package health tracks per-provider availability from request outcomes and
// scheduled probes. A provider becomes unavailable after a run of
// consecutive failures and recovers on the first success; the executor uses
// this state when choosing fallback routes.
package health
