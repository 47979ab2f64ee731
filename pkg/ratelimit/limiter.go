package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm for rate limiting.
type TokenBucket struct {
	capacity   int
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket that holds capacity tokens and
// regains refillRate tokens per second.
func NewTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// Take consumes one token at now. When the bucket is empty it returns false
// and how long until a token is available.
func (tb *TokenBucket) Take(now time.Time) (bool, time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens = math.Min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, 0
	}
	if tb.refillRate <= 0 {
		return false, time.Hour
	}
	wait := time.Duration((1.0 - tb.tokens) / tb.refillRate * float64(time.Second))
	return false, wait
}

// Tokens returns the current number of available tokens.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration // inactive buckets older than this are dropped
	now        func() time.Time
	mu         sync.Mutex
}

func NewRateLimiter(capacity int, refillRate float64, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Allow takes a token for key and reports the wait when it is refused.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = NewTokenBucket(rl.capacity, rl.refillRate, now)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.Take(now)
}


// Sweep drops buckets idle for longer than the ttl and returns how many went.
func (rl *RateLimiter) Sweep() int {
	if rl.ttl <= 0 {
		return 0
	}
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	removed := 0
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) > rl.ttl {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// Run sweeps idle buckets every ttl until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	if rl.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
