package contextstore

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/CMBAgents/synapses/pkg/telemetry/metrics"
)

// Sentinel is returned when no documentation context can be found for a
// program. Callers inject it verbatim so the model knows context was
// attempted and unavailable, rather than silently absent.
const Sentinel = "No additional context available."

// Load sources, as reported to the metrics collector.
const (
	sourceCache    = "cache"
	sourceRemote   = "remote"
	sourceLocal    = "local"
	sourceSentinel = "sentinel"
)

// Entry is one cached program context.
type Entry struct {
	Content   string
	Source    string
	FetchedAt time.Time
}

// Store caches per-program documentation context for the lifetime of the
// process. Loads for the same program coalesce onto one fetch; failed
// fetches yield the sentinel without caching it, so a later load can
// recover once the source is reachable again.
type Store struct {
	fetcher *Fetcher

	mu    sync.RWMutex
	cache map[string]Entry

	group     singleflight.Group
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewStore creates a context store backed by the given fetcher.
func NewStore(fetcher *Fetcher, logger *slog.Logger, collector *metrics.Collector) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		fetcher:   fetcher,
		cache:     make(map[string]Entry),
		logger:    logger,
		collector: collector,
	}
}

// Load returns the documentation context for a program. It never fails:
// when every source is exhausted the sentinel is returned. Results other
// than the sentinel are cached; concurrent loads for the same program share
// a single fetch.
func (s *Store) Load(ctx context.Context, programID string) string {
	if programID == "" {
		return Sentinel
	}

	s.mu.RLock()
	entry, ok := s.cache[programID]
	s.mu.RUnlock()
	if ok {
		s.collector.RecordContextLoad(sourceCache)
		return entry.Content
	}

	result, err, shared := s.group.Do(programID, func() (any, error) {
		return s.fetch(ctx, programID), nil
	})
	if shared {
		s.collector.RecordContextCoalesced()
	}
	if err != nil {
		// The fetch closure never errors; this is unreachable but the
		// sentinel is the only sane answer if it ever happens.
		return Sentinel
	}
	return result.(string)
}

// fetch runs the source chain for one program and caches a hit.
func (s *Store) fetch(ctx context.Context, programID string) string {
	content, source := s.fetcher.Fetch(ctx, programID)
	s.collector.RecordContextLoad(source)

	if source == sourceSentinel {
		s.logger.Warn("no context found for program", "program", programID)
		return Sentinel
	}

	s.mu.Lock()
	s.cache[programID] = Entry{
		Content:   content,
		Source:    source,
		FetchedAt: time.Now(),
	}
	s.mu.Unlock()

	s.logger.Debug("context cached",
		"program", programID,
		"source", source,
		"bytes", len(content),
	)
	return content
}

// Invalidate drops the cached entry for a program. The next load refetches.
func (s *Store) Invalidate(programID string) {
	s.mu.Lock()
	delete(s.cache, programID)
	s.mu.Unlock()
}

// Clear drops every cached entry.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cache = make(map[string]Entry)
	s.mu.Unlock()
}

// Cached reports whether a program currently has a cached entry.
func (s *Store) Cached(programID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cache[programID]
	return ok
}
