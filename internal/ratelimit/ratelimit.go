// Package ratelimit implements per-identifier sliding-window admission
// control for the webhook endpoints.
package ratelimit

import (
	"sync"
	"time"
)

const (
	// MaxRequestsPerWindow is the number of requests an identifier may make
	// within Window before being rejected.
	MaxRequestsPerWindow = 10
	// Window is the trailing period over which requests are counted.
	Window = time.Minute
)

// Limiter tracks admitted request timestamps per identifier. Construct one
// per process with New and inject it into the handlers; tests get their own
// isolated instance.
type Limiter struct {
	mu     sync.Mutex
	seen   map[string][]time.Time
	now    func() time.Time
	max    int
	window time.Duration
}

// New returns a Limiter with the default window and threshold.
func New() *Limiter {
	return &Limiter{
		seen:   make(map[string][]time.Time),
		now:    time.Now,
		max:    MaxRequestsPerWindow,
		window: Window,
	}
}

// Check reports whether a request from identifier should be admitted. When
// rejected, retryAfter is the number of seconds until the oldest surviving
// request leaves the window, clamped to a minimum of 1 so the Retry-After
// header is always meaningful.
//
// Timestamps older than the window are pruned on every call, so an
// identifier's slice never grows beyond the threshold. Identifiers
// themselves are never removed from the map; growth is bounded by client IP
// cardinality, which is acceptable for a single-process deployment.
func (l *Limiter) Check(identifier string) (allowed bool, retryAfter int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.seen[identifier][:0]
	for _, ts := range l.seen[identifier] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.seen[identifier] = kept

	if len(kept) >= l.max {
		retry := int(kept[0].Add(l.window).Sub(now).Seconds())
		if retry < 1 {
			retry = 1
		}
		return false, retry
	}

	l.seen[identifier] = append(kept, now)
	return true, 0
}
