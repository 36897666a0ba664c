package gpaapi

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER - Token Bucket implementation
// ══════════════════════════════════════════════════════════════════════════════

// RateLimiterConfig contains configuration for the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64

	// BurstSize is the bucket capacity.
	BurstSize int

	// WaitTimeout is the longest Wait blocks for a token.
	WaitTimeout time.Duration

	// CooldownOn429 is the pause applied when the backend answers 429 without
	// a Retry-After header.
	CooldownOn429 time.Duration
}

// DefaultRateLimiterConfig returns defaults that keep a single student's
// transcript sync well below typical backend limits.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		WaitTimeout:       15 * time.Second,
		CooldownOn429:     5 * time.Second,
	}
}

// RateLimiter throttles outgoing requests with a token bucket.
type RateLimiter struct {
	mu sync.Mutex

	capacity   float64
	refillRate float64
	tokens     float64
	lastRefill time.Time

	waitTimeout time.Duration
	cooldown    time.Duration
	pausedUntil time.Time
	hits        int

	now func() time.Time
}

// NewRateLimiter creates a new RateLimiter with a full bucket.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = DefaultRateLimiterConfig().RequestsPerSecond
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 1
	}
	rl := &RateLimiter{
		capacity:    float64(config.BurstSize),
		refillRate:  config.RequestsPerSecond,
		tokens:      float64(config.BurstSize),
		waitTimeout: config.WaitTimeout,
		cooldown:    config.CooldownOn429,
		now:         time.Now,
	}
	rl.lastRefill = rl.now()
	return rl
}

// RateLimitError is returned when the backend throttled us or when no token
// became available within the wait timeout.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// Is matches any *RateLimitError.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// Wait blocks until a token is available, the context ends or the wait
// timeout expires.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	deadline := rl.now().Add(rl.waitTimeout)
	for {
		wait, ok := rl.reserve()
		if ok {
			return nil
		}
		if rl.waitTimeout > 0 && rl.now().Add(wait).After(deadline) {
			return &RateLimitError{RetryAfter: wait, Message: "timeout waiting for rate limiter"}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire takes a token without blocking.
func (rl *RateLimiter) TryAcquire() bool {
	_, ok := rl.reserve()
	return ok
}

func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Before(rl.pausedUntil) {
		return rl.pausedUntil.Sub(now), false
	}

	rl.refill(now)
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	need := 1 - rl.tokens
	return time.Duration(need / rl.refillRate * float64(time.Second)), false
}

// refill must be called with the lock held.
func (rl *RateLimiter) refill(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.capacity {
		rl.tokens = rl.capacity
	}
	rl.lastRefill = now
}

// RecordRateLimitHit empties the bucket and pauses until retryAfter elapses.
func (rl *RateLimiter) RecordRateLimitHit(retryAfter time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if retryAfter <= 0 {
		retryAfter = rl.cooldown
	}
	rl.tokens = 0
	rl.hits++
	rl.pausedUntil = rl.now().Add(retryAfter)
}

// Reset refills the bucket and clears any pause.
func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.capacity
	rl.lastRefill = rl.now()
	rl.pausedUntil = time.Time{}
	rl.hits = 0
}

// RateLimiterStatus is a snapshot of the limiter.
type RateLimiterStatus struct {
	AvailableTokens float64
	Capacity        float64
	RefillRate      float64
	PausedUntil     time.Time
	RateLimitHits   int
}

// Status returns the current status of the rate limiter.
func (rl *RateLimiter) Status() RateLimiterStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill(rl.now())

	return RateLimiterStatus{
		AvailableTokens: rl.tokens,
		Capacity:        rl.capacity,
		RefillRate:      rl.refillRate,
		PausedUntil:     rl.pausedUntil,
		RateLimitHits:   rl.hits,
	}
}
