package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket implements the token bucket algorithm over bytes.
//
// The bucket holds at most capacity tokens (the burst) and refills at
// refillRate tokens per second. One token is one byte of connection I/O.
//
// # Thread Safety
//
// TokenBucket is safe for concurrent use.
type TokenBucket struct {
	capacity   int64     // Maximum tokens in bucket
	tokens     int64     // Current available tokens
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	mu         sync.Mutex
}

// NewTokenBucket creates a bucket that starts full.
//
// Example:
//
//	// 1 MiB/s average, bursts up to 4 MiB
//	bucket := NewTokenBucket(4<<20, 1<<20)
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Take consumes n tokens if all of them are available.
func (tb *TokenBucket) Take(n int64) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= n {
		tb.tokens -= n
		return true
	}

	return false
}

// TakeUpTo consumes as many tokens as are available, at most max, and
// returns how many were taken.
func (tb *TokenBucket) TakeUpTo(max int64) int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	n := tb.tokens
	if n > max {
		n = max
	}
	if n < 0 {
		n = 0
	}
	tb.tokens -= n
	return n
}

// Return gives back n unused tokens, never exceeding capacity.
func (tb *TokenBucket) Return(n int64) {
	if n <= 0 {
		return
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens += n
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

// Remaining returns the number of tokens currently available.
func (tb *TokenBucket) Remaining() int64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()
	return tb.tokens
}

// TimeUntilAvailable returns how long until n tokens will be available,
// at least one millisecond when they are not available now.
func (tb *TokenBucket) TimeUntilAvailable(n int64) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked()

	if tb.tokens >= n {
		return 0
	}
	if tb.refillRate <= 0 {
		return time.Duration(1<<63 - 1)
	}

	tokensNeeded := n - tb.tokens
	secondsNeeded := float64(tokensNeeded) / tb.refillRate

	d := time.Duration(secondsNeeded * float64(time.Second))
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return d
}

// refillLocked adds tokens based on elapsed time since last refill.
// Caller must hold lock.
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	tokensToAdd := int64(elapsed.Seconds() * tb.refillRate)

	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.capacity || tb.tokens < 0 {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}
