// Package ratelimiter implements the per-indexer token bucket described
// in SPEC_FULL.md §4.8. golang.org/x/time/rate.Limiter does not expose
// its current token count, which set_rate_limit needs to preserve across
// a capacity change, so this is a small bucket hand-rolled in the same
// refill-on-read shape as x/time/rate's Limiter rather than that type
// itself.
package ratelimiter

import (
	"sync"
	"time"
)

// Limiter is a token bucket with capacity requests_per_minute and a
// steady refill rate of capacity/60 tokens per second.
type Limiter struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// New builds a Limiter at full capacity.
func New(requestsPerMinute int) *Limiter {
	capacity := float64(requestsPerMinute)
	return &Limiter{
		capacity:   capacity,
		refillRate: capacity / 60,
		tokens:     capacity,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

func (l *Limiter) refillLocked() {
	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	l.tokens += elapsed * l.refillRate
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.lastRefill = now
}

// TryAcquire consumes one token if available. On success it returns
// (true, 0). On failure it returns the wait duration until a token would
// next be available.
func (l *Limiter) TryAcquire() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	if l.tokens >= 1 {
		l.tokens--
		return true, 0
	}
	if l.refillRate <= 0 {
		return false, time.Duration(1<<63 - 1)
	}
	deficit := 1 - l.tokens
	wait := time.Duration(deficit/l.refillRate*1000) * time.Millisecond
	return false, wait
}

// SetRateLimit changes capacity, preserving the current token count
// clamped to the new capacity (§4.8).
func (l *Limiter) SetRateLimit(requestsPerMinute int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	l.capacity = float64(requestsPerMinute)
	l.refillRate = l.capacity / 60
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
}

// Tokens reports the current (refilled) token count, rounded down.
func (l *Limiter) Tokens() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refillLocked()
	return int(l.tokens)
}
