// Package contextstore loads and caches per-program documentation context
// injected into chat requests. Context comes from configured remote URLs
// with a local docs-directory fallback; misses resolve to a sentinel that
// is deliberately never cached. Concurrent loads for one program coalesce
// onto a single fetch, and a filesystem watcher invalidates entries when
// local documentation changes.
package contextstore
