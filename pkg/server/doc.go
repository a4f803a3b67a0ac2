// Package server owns the HTTP listener lifecycle for the gateway:
// startup, signal handling, and graceful shutdown.
package server
