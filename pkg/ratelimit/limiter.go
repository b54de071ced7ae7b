// Package ratelimit implements per-source sliding-window admission control
// for status pings. Denial is the expected behavior under attack, so the
// deny path allocates nothing and logs nothing.
package ratelimit

import (
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var rateLimitDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ultramotd_ratelimit_denied_total",
	Help: "Total number of status pings denied by the rate limiter",
})

// DefaultWindow is the sliding-window length used by the server.
const DefaultWindow = time.Second

// sourceState is one source's window. Guarded by its own mutex so calls for
// different sources never contend.
type sourceState struct {
	mu          sync.Mutex
	windowStart time.Time
	count       int
}

// Limiter admits at most limit calls per source within any window. Source
// states are created lazily on first sight and kept for the process
// lifetime; sustained scanning from many distinct addresses grows the map
// without bound (known limitation).
type Limiter struct {
	limit   int
	window  time.Duration
	sources sync.Map // netip.Addr -> *sourceState
}

// NewLimiter creates a limiter allowing limit calls per window per source.
func NewLimiter(limit int, window time.Duration) (*Limiter, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("ratelimit: limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window must be positive, got %s", window)
	}
	return &Limiter{limit: limit, window: window}, nil
}

// Allow reports whether a call from source at time now is admitted. The
// first call in a window opens it; once the count reaches the limit, further
// calls are denied until the window ages out.
func (l *Limiter) Allow(source netip.Addr, now time.Time) bool {
	v, ok := l.sources.Load(source)
	if !ok {
		v, _ = l.sources.LoadOrStore(source, &sourceState{windowStart: now})
	}
	state := v.(*sourceState)

	state.mu.Lock()
	defer state.mu.Unlock()

	if now.Sub(state.windowStart) > l.window {
		state.windowStart = now
		state.count = 1
		return true
	}
	if state.count < l.limit {
		state.count++
		return true
	}
	rateLimitDeniedTotal.Inc()
	return false
}

// Sources returns the number of tracked source addresses. Used by the
// monitor to watch map growth.
func (l *Limiter) Sources() int {
	n := 0
	l.sources.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Limit returns the configured per-window limit.
func (l *Limiter) Limit() int {
	return l.limit
}

// Window returns the configured window length.
func (l *Limiter) Window() time.Duration {
	return l.window
}
