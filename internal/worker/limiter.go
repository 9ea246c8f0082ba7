package worker

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter implements per-provider rate limiting for reasoning calls.
type Limiter struct {
	limiters     map[string]*rate.Limiter
	mu           sync.RWMutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewLimiter creates a new rate limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
	}
}

// Wait blocks until the provider's rate limit clears or the context ends.
func (l *Limiter) Wait(ctx context.Context, provider string) error {
	return l.getLimiter(provider).Wait(ctx)
}

// Allow checks whether a call is allowed without waiting
func (l *Limiter) Allow(provider string) bool {
	return l.getLimiter(provider).Allow()
}

func (l *Limiter) getLimiter(provider string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[provider]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[provider]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
	l.limiters[provider] = limiter

	return limiter
}

// SetProviderRate overrides the rate limit for one provider
func (l *Limiter) SetProviderRate(provider string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if burst <= 0 {
		burst = l.defaultBurst
	}

	l.limiters[provider] = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}
