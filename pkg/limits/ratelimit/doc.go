// Package ratelimit implements the fixed-window attempt limiter guarding
// the credential validation endpoint.
package ratelimit
