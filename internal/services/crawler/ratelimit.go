package crawler

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces requests per host. Each host gets its own token bucket
// with a burst of one, so two successive waits for the same host are at least
// the configured delay apart while different hosts proceed independently.
// Nothing is held locked while a caller sleeps.
type RateLimiter struct {
	mu           sync.RWMutex
	limiters     map[string]*rate.Limiter
	defaultDelay time.Duration
}

// NewRateLimiter creates a rate limiter with the given default per-host delay.
func NewRateLimiter(defaultDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultDelay: defaultDelay,
	}
}

// Wait blocks until the caller may issue a request to the host. A delay of
// zero disables spacing for the call; a negative delay falls back to the
// default.
func (rl *RateLimiter) Wait(ctx context.Context, host string, delay time.Duration) error {
	if host == "" {
		return nil
	}
	if delay < 0 {
		delay = rl.defaultDelay
	}
	return rl.limiter(host, delay).Wait(ctx)
}

func (rl *RateLimiter) limiter(host string, delay time.Duration) *rate.Limiter {
	limit := limitFor(delay)

	rl.mu.RLock()
	limiter, ok := rl.limiters[host]
	rl.mu.RUnlock()

	if ok {
		// Configs may disagree on the delay for a shared host; the most
		// recent caller wins.
		if limiter.Limit() != limit {
			limiter.SetLimit(limit)
		}
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if limiter, ok := rl.limiters[host]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(limit, 1)
	rl.limiters[host] = limiter
	return limiter
}

func limitFor(delay time.Duration) rate.Limit {
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}
