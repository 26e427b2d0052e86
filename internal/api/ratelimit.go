package api

import (
	"sync"

	"golang.org/x/time/rate"
)

// submitLimiter rate-limits flag submissions per user to slow down
// brute-forcing. Limiters are created lazily and never expire; the
// per-user footprint is two floats and a timestamp.
type submitLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// newSubmitLimiter creates a limiter allowing perMinute submissions
// per user with the given burst
func newSubmitLimiter(perMinute, burst int) *submitLimiter {
	if burst < 1 {
		burst = 1
	}

	return &submitLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(float64(perMinute) / 60.0),
		burst:    burst,
	}
}

// Allow reports whether the user may submit now
func (l *submitLimiter) Allow(userID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[userID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}
