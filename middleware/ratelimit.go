package middleware

import (
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"distance-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// sweepOneIn is the denominator of the opportunistic cleanup probability:
// roughly one request in this many triggers a sweep of expired windows.
const sweepOneIn = 100

// window is one fixed counting window for a single client identifier.
type window struct {
	count   int
	resetAt time.Time
}

// FixedWindowLimiter is a fixed-window counter per client identifier.
// Chosen over a token bucket for O(1) memory and trivial reasoning; the
// trade-off is that up to 2x the nominal rate can pass across a window
// boundary, which is acceptable for best-effort abuse mitigation.
//
// Windows reset lazily: an expired window is replaced on the next request
// for that identifier, not by a timer. A probabilistic sweep keeps memory
// bounded for identifiers that never come back.
type FixedWindowLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	max      int
	duration time.Duration
}

// NewFixedWindowLimiter creates a limiter allowing max requests per
// identifier per window duration.
func NewFixedWindowLimiter(max int, duration time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows:  make(map[string]*window),
		max:      max,
		duration: duration,
	}
}

// Allowed records one request for identifier and reports whether it fits in
// the current window. When rejected, retryAfter is the time remaining until
// the window resets.
func (l *FixedWindowLimiter) Allowed(identifier string) (ok bool, retryAfter time.Duration) {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if rand.Intn(sweepOneIn) == 0 {
		l.sweepLocked(now)
	}

	w, exists := l.windows[identifier]
	if !exists || !now.Before(w.resetAt) {
		l.windows[identifier] = &window{count: 1, resetAt: now.Add(l.duration)}
		return true, 0
	}

	if w.count >= l.max {
		return false, w.resetAt.Sub(now)
	}

	w.count++
	return true, 0
}

// Remaining reports how many requests identifier has left in its current
// window, for the X-RateLimit-Remaining header.
func (l *FixedWindowLimiter) Remaining(identifier string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, exists := l.windows[identifier]
	if !exists || !time.Now().Before(w.resetAt) {
		return l.max
	}
	remaining := l.max - w.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Limit returns the configured per-window ceiling.
func (l *FixedWindowLimiter) Limit() int {
	return l.max
}

// sweepLocked removes windows whose reset time has passed. Caller holds the lock.
func (l *FixedWindowLimiter) sweepLocked(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}

// RateLimit applies the limiter to every inbound request, keyed by client
// IP. It runs before validation on purpose: malformed requests are
// themselves a signal worth counting.
func RateLimit(next http.Handler, limiter *FixedWindowLimiter, trustProxy bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identifier := ClientIP(r, trustProxy)

		allowed, retryAfter := limiter.Allowed(identifier)
		if !allowed {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			log.Warnf("%s %s exceeded %d requests per window", logcolors.LogRateLimit, identifier, limiter.Limit())
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded",
				fmt.Sprintf("Too many requests. Retry in %d seconds.", seconds))
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.Limit()))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", limiter.Remaining(identifier)))
		next.ServeHTTP(w, r)
	})
}
