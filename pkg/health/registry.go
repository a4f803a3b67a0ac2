package health

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// maxRecentErrors bounds the per-provider recent error ring.
const maxRecentErrors = 10

// Health is a point-in-time view of one provider's availability.
type Health struct {
	// Provider is the provider's registry key.
	Provider string `json:"provider"`

	// Available is false once the provider has crossed the consecutive
	// failure threshold; a single success restores it.
	Available bool `json:"available"`

	// SuccessRate is successful requests over total requests, in [0, 1].
	// A provider with no traffic reports 1.
	SuccessRate float64 `json:"success_rate"`

	// AvgLatency is the mean latency over successful requests.
	AvgLatency time.Duration `json:"avg_latency_ms"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastError is the message of the most recent failure, if any.
	LastError string `json:"last_error,omitempty"`

	// LastChecked is when this provider last reported an outcome.
	LastChecked time.Time `json:"last_checked"`

	// TotalRequests counts completed requests, excluding probes.
	TotalRequests int64 `json:"total_requests"`
}

// record holds one provider's mutable health state.
type record struct {
	mu sync.Mutex

	available           bool
	consecutiveFailures int
	lastError           string
	lastChecked         time.Time

	totalRequests      int64
	successfulRequests int64
	totalLatency       time.Duration

	recentErrors []string
}

// Registry tracks the health of every provider that has carried traffic.
// Outcomes are reported after each request and each scheduled probe; the
// executor consults BestProvider when choosing a fallback route.
type Registry struct {
	mu      sync.RWMutex
	records map[string]*record

	failureThreshold int
	lastResort       string
	logger           *slog.Logger

	// onTransition is invoked when a provider flips between available and
	// unavailable. Used to feed the availability gauge.
	onTransition func(provider string, available bool)
}

// Option configures a Registry.
type Option func(*Registry)

// WithTransitionHook registers a callback fired on availability flips.
func WithTransitionHook(fn func(provider string, available bool)) Option {
	return func(r *Registry) { r.onTransition = fn }
}

// NewRegistry creates a health registry.
//
// failureThreshold is the number of consecutive failures after which a
// provider is considered unavailable. lastResort is the provider returned by
// BestProvider when every tracked provider is down.
func NewRegistry(failureThreshold int, lastResort string, logger *slog.Logger, opts ...Option) *Registry {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		records:          make(map[string]*record),
		failureThreshold: failureThreshold,
		lastResort:       lastResort,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// get returns the record for a provider, creating it on first sight.
// New providers start available.
func (r *Registry) get(provider string) *record {
	r.mu.RLock()
	rec, ok := r.records[provider]
	r.mu.RUnlock()
	if ok {
		return rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok = r.records[provider]; ok {
		return rec
	}
	rec = &record{available: true}
	r.records[provider] = rec
	return rec
}

// Report records the outcome of one completed request.
func (r *Registry) Report(provider string, ok bool, latency time.Duration, err error) {
	rec := r.get(provider)

	rec.mu.Lock()
	rec.lastChecked = time.Now()
	rec.totalRequests++
	if ok {
		rec.successfulRequests++
		rec.totalLatency += latency
	}
	transition := r.applyOutcomeLocked(rec, provider, ok, err)
	rec.mu.Unlock()

	r.fireTransition(provider, transition)
}

// ReportProbe records the outcome of a scheduled probe. Probes drive the
// availability state machine but do not count as traffic, so success rates
// and latency stay request-only.
func (r *Registry) ReportProbe(provider string, ok bool, err error) {
	rec := r.get(provider)

	rec.mu.Lock()
	rec.lastChecked = time.Now()
	transition := r.applyOutcomeLocked(rec, provider, ok, err)
	rec.mu.Unlock()

	r.fireTransition(provider, transition)
}

// applyOutcomeLocked advances the availability state machine. It returns a
// non-nil transition when the provider flipped state. rec.mu must be held.
func (r *Registry) applyOutcomeLocked(rec *record, provider string, ok bool, err error) *bool {
	if ok {
		rec.consecutiveFailures = 0
		rec.lastError = ""
		if !rec.available {
			rec.available = true
			r.logger.Info("provider recovered", "provider", provider)
			t := true
			return &t
		}
		return nil
	}

	rec.consecutiveFailures++
	if err != nil {
		rec.lastError = err.Error()
		rec.recentErrors = append(rec.recentErrors, err.Error())
		if len(rec.recentErrors) > maxRecentErrors {
			rec.recentErrors = rec.recentErrors[len(rec.recentErrors)-maxRecentErrors:]
		}
	}
	if rec.available && rec.consecutiveFailures >= r.failureThreshold {
		rec.available = false
		r.logger.Warn("provider marked unavailable",
			"provider", provider,
			"consecutive_failures", rec.consecutiveFailures,
			"last_error", rec.lastError,
		)
		t := false
		return &t
	}
	return nil
}

func (r *Registry) fireTransition(provider string, transition *bool) {
	if transition != nil && r.onTransition != nil {
		r.onTransition(provider, *transition)
	}
}

// Available reports whether a provider is currently considered usable.
// Unknown providers are optimistically available.
func (r *Registry) Available(provider string) bool {
	r.mu.RLock()
	rec, ok := r.records[provider]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.available
}

// health builds the snapshot view of one record. rec.mu must not be held.
func (rec *record) health(provider string) Health {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	h := Health{
		Provider:            provider,
		Available:           rec.available,
		SuccessRate:         1,
		ConsecutiveFailures: rec.consecutiveFailures,
		LastError:           rec.lastError,
		LastChecked:         rec.lastChecked,
		TotalRequests:       rec.totalRequests,
	}
	if rec.totalRequests > 0 {
		h.SuccessRate = float64(rec.successfulRequests) / float64(rec.totalRequests)
	}
	if rec.successfulRequests > 0 {
		h.AvgLatency = rec.totalLatency / time.Duration(rec.successfulRequests)
	}
	return h
}

// Snapshot returns the health of every tracked provider, sorted by name.
func (r *Registry) Snapshot() []Health {
	r.mu.RLock()
	names := make([]string, 0, len(r.records))
	recs := make(map[string]*record, len(r.records))
	for name, rec := range r.records {
		names = append(names, name)
		recs[name] = rec
	}
	r.mu.RUnlock()

	sort.Strings(names)
	out := make([]Health, 0, len(names))
	for _, name := range names {
		out = append(out, recs[name].health(name))
	}
	return out
}

// BestProvider picks a provider for fallback routing. The preferred provider
// wins when it is available. Otherwise the available provider with the best
// success rate is chosen, latency breaking ties. When nothing is available
// the configured last resort is returned with a warning; sending the request
// there at least produces a provider error rather than silently dropping it.
func (r *Registry) BestProvider(preferred string) string {
	if preferred != "" && r.Available(preferred) {
		return preferred
	}

	var (
		bestName string
		best     Health
	)
	for _, h := range r.Snapshot() {
		if !h.Available {
			continue
		}
		if bestName == "" || better(h, best) {
			bestName, best = h.Provider, h
		}
	}
	if bestName != "" {
		return bestName
	}

	r.logger.Warn("no available providers, using last resort",
		"preferred", preferred,
		"last_resort", r.lastResort,
	)
	return r.lastResort
}

// better reports whether a should be preferred over b.
func better(a, b Health) bool {
	if a.SuccessRate != b.SuccessRate {
		return a.SuccessRate > b.SuccessRate
	}
	// Untracked latency (no successes yet) sorts last.
	if a.AvgLatency == 0 {
		return false
	}
	if b.AvgLatency == 0 {
		return true
	}
	return a.AvgLatency < b.AvgLatency
}
