package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// ipRateLimiter keeps one token bucket per client IP. The bucket refills at
// the configured per-minute rate with a burst of the full minute's budget.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newIPRateLimiter(perMinute int) *ipRateLimiter {
	return &ipRateLimiter{
		visitors: make(map[string]*rate.Limiter),
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
	}
}

func (rl *ipRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.visitors[key]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.visitors[key] = l
	}
	return l.Allow()
}
