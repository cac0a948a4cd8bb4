package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/simplewallet/config"
)

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	MaxRequests     int           // Maximum number of requests allowed per window
	WindowSize      time.Duration // Sliding window length
	CleanupInterval time.Duration // How often idle keys are dropped
}

// DefaultConfig returns a default configuration
func DefaultConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		MaxRequests:     config.DefaultMaxRequests,
		WindowSize:      time.Duration(config.DefaultWindowMs) * time.Millisecond,
		CleanupInterval: 5 * time.Minute,
	}
}

// FromNodeConfig maps the [ratelimit] section onto a limiter config
func FromNodeConfig(rc config.RateLimitConfig) *RateLimiterConfig {
	cfg := DefaultConfig()
	if rc.MaxRequests > 0 {
		cfg.MaxRequests = rc.MaxRequests
	}
	if rc.WindowMs > 0 {
		cfg.WindowSize = time.Duration(rc.WindowMs) * time.Millisecond
	}
	return cfg
}

// RateLimiter implements sliding window rate limiting per key
type RateLimiter struct {
	config      *RateLimiterConfig
	requests    map[string][]time.Time // key -> request timestamps inside the window
	mu          sync.Mutex
	now         func() time.Time
	stopOnce    sync.Once
	stopCleanup chan struct{}
}

func NewRateLimiter(cfg *RateLimiterConfig) *RateLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rl := &RateLimiter{
		config:      cfg,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	go rl.cleanupExpiredEntries()

	return rl
}

// Allow reports whether a request from key fits in the window and records it if so
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.Reserve(key)
	return ok
}

// Reserve is Allow that also says how long until the oldest request leaves the window
func (rl *RateLimiter) Reserve(key string) (bool, time.Duration) {
	now := rl.now()
	cutoff := now.Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := prune(rl.requests[key], cutoff)
	if len(valid) >= rl.config.MaxRequests {
		rl.requests[key] = valid
		return false, valid[0].Sub(cutoff)
	}
	rl.requests[key] = append(valid, now)
	return true, 0
}

// prune drops timestamps not after cutoff; ts is in ascending order
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// Count returns how many requests of key are inside the window
func (rl *RateLimiter) Count(key string) int {
	cutoff := rl.now().Add(-rl.config.WindowSize)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(prune(rl.requests[key], cutoff))
}

func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

func (rl *RateLimiter) cleanupExpiredEntries() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	cutoff := rl.now().Add(-rl.config.WindowSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, ts := range rl.requests {
		if valid := prune(ts, cutoff); len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// Stop stops the cleanup goroutine; safe to call twice
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// RateLimitError represents a rate limit error
type RateLimitError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for '%s', retry after %v", e.Key, e.RetryAfter)
}
