// Package ratelimit paces work per key, e.g. scenario starts per target host.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config defines the pacing configuration.
type Config struct {
	PerSecond       float64       // Events per second per key; <= 0 means unlimited
	Burst           int           // Events allowed at once per key
	CleanupInterval time.Duration // How often idle limiters are dropped
}

// DefaultConfig paces one scenario start per second with no burst.
var DefaultConfig = Config{
	PerSecond:       1,
	Burst:           1,
	CleanupInterval: time.Hour,
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// RateLimiter holds one token bucket per key.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.RWMutex
	config   Config

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRateLimiter creates a limiter and starts its cleanup goroutine.
func NewRateLimiter(config Config) *RateLimiter {
	if config.Burst < 1 {
		config.Burst = 1
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultConfig.CleanupInterval
	}
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		config:   config,
		stopCh:   make(chan struct{}),
	}

	rl.wg.Add(1)
	go rl.cleanupLoop()

	return rl
}

// Allow reports whether an event for key may happen now.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.GetLimiter(key).Allow()
}

// Wait blocks until an event for key may happen or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.GetLimiter(key).Wait(ctx)
}

// GetLimiter returns the limiter for key, creating one if necessary.
func (rl *RateLimiter) GetLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	entry, exists := rl.limiters[key]
	rl.mu.RUnlock()
	if exists {
		rl.touch(entry)
		return entry.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if entry, exists = rl.limiters[key]; exists {
		entry.lastUsed = time.Now()
		return entry.limiter
	}

	limit := rate.Inf
	if rl.config.PerSecond > 0 {
		limit = rate.Limit(rl.config.PerSecond)
	}
	limiter := rate.NewLimiter(limit, rl.config.Burst)
	rl.limiters[key] = &limiterEntry{limiter: limiter, lastUsed: time.Now()}
	return limiter
}

func (rl *RateLimiter) touch(entry *limiterEntry) {
	rl.mu.Lock()
	entry.lastUsed = time.Now()
	rl.mu.Unlock()
}

// Cleanup removes limiters idle for longer than the cleanup interval.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.config.CleanupInterval)
	for key, entry := range rl.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) cleanupLoop() {
	defer rl.wg.Done()

	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine and waits for it to finish.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
	rl.wg.Wait()
}

// Len returns the number of live limiters.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}
