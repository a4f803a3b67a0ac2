package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// LimitExceededError is returned by Allow when an identity has exhausted its
// validation attempts for the current window.
type LimitExceededError struct {
	// Identity is the rate-limited key.
	Identity string

	// Limit is the configured attempt budget per window.
	Limit int

	// RetryAfter is how long until the window opens again.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %q: %d attempts per window, retry after %s",
		e.Identity, e.Limit, e.RetryAfter.Round(time.Second))
}

// window tracks one identity's attempts in the current fixed window.
type window struct {
	count int
	start time.Time
}

// Limiter enforces a per-identity attempt budget over a rolling window.
// It guards the credential validation endpoint against brute-force probing:
// each identity gets a fixed number of failed attempts per window, and a
// successful validation resets the identity's budget immediately.
//
// The window restarts when the first attempt after expiry arrives, so an
// idle identity never accumulates debt.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window

	windowSize  time.Duration
	maxAttempts int

	// now is injectable for tests.
	now func() time.Time

	lastSweep time.Time
}

// NewLimiter creates a limiter allowing maxAttempts per identity per
// windowSize.
func NewLimiter(windowSize time.Duration, maxAttempts int) *Limiter {
	if windowSize <= 0 {
		windowSize = 15 * time.Minute
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Limiter{
		windows:     make(map[string]*window),
		windowSize:  windowSize,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Allow records an attempt for identity and returns nil when it is within
// budget, or *LimitExceededError when the budget is exhausted. The rejected
// attempt itself is not counted, so the retry delay never grows from
// rejected traffic.
func (l *Limiter) Allow(identity string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	w, ok := l.windows[identity]
	if !ok || now.Sub(w.start) >= l.windowSize {
		l.windows[identity] = &window{count: 1, start: now}
		return nil
	}

	if w.count >= l.maxAttempts {
		return &LimitExceededError{
			Identity:   identity,
			Limit:      l.maxAttempts,
			RetryAfter: w.start.Add(l.windowSize).Sub(now),
		}
	}

	w.count++
	return nil
}

// Reset clears the attempt budget for an identity. Called after a
// successful validation so legitimate users are never locked out by their
// own earlier typos.
func (l *Limiter) Reset(identity string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, identity)
}

// Remaining returns how many attempts the identity has left in the current
// window.
func (l *Limiter) Remaining(identity string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[identity]
	if !ok || l.now().Sub(w.start) >= l.windowSize {
		return l.maxAttempts
	}
	if w.count >= l.maxAttempts {
		return 0
	}
	return l.maxAttempts - w.count
}

// sweepLocked drops expired windows. Runs at most once per window size so
// the map does not grow with one-shot identities. l.mu must be held.
func (l *Limiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.windowSize {
		return
	}
	l.lastSweep = now
	for identity, w := range l.windows {
		if now.Sub(w.start) >= l.windowSize {
			delete(l.windows, identity)
		}
	}
}
