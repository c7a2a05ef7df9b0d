package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// LocalLimiter is a per-key token bucket held in process memory. It backs the
// access limiter when redis is absent or unreachable.
type LocalLimiter struct {
	rate  rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	limiters map[string]*keyLimiter
}

func NewLocalLimiter(perSecond float64, burst int, idle time.Duration) *LocalLimiter {
	return &LocalLimiter{
		rate:     rate.Limit(perSecond),
		burst:    burst,
		idle:     idle,
		now:      time.Now,
		limiters: make(map[string]*keyLimiter),
	}
}

func (l *LocalLimiter) Allow(key string) *RateLimitResult {
	now := l.now()
	limiter := l.limiterFor(key, now)
	allowed := limiter.AllowN(now, 1)
	return newResult(allowed, limiter.TokensAt(now), float64(l.rate), l.burst)
}

func (l *LocalLimiter) limiterFor(key string, now time.Time) *rate.Limiter {
	l.mu.RLock()
	entry, ok := l.limiters[key]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		entry.lastAccess = now
		l.mu.Unlock()
		return entry.limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok := l.limiters[key]; ok {
		entry.lastAccess = now
		return entry.limiter
	}
	limiter := rate.NewLimiter(l.rate, l.burst)
	l.limiters[key] = &keyLimiter{limiter: limiter, lastAccess: now}
	return limiter
}

// Cleanup drops limiters idle for longer than the configured window.
func (l *LocalLimiter) Cleanup() {
	cutoff := l.now().Add(-l.idle)
	l.mu.Lock()
	for key, entry := range l.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
	l.mu.Unlock()
}

func (l *LocalLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limiters)
}

func (l *LocalLimiter) run(stop <-chan struct{}) {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Cleanup()
		case <-stop:
			return
		}
	}
}
