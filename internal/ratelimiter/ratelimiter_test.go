package ratelimiter

import (
	"testing"
	"time"
)

func TestLimiter_TryAcquireDrainsCapacity(t *testing.T) {
	l := New(60) // 1 token/sec
	for i := 0; i < 60; i++ {
		ok, _ := l.TryAcquire()
		if !ok {
			t.Fatalf("expected acquire %d to succeed with full bucket", i)
		}
	}
	ok, wait := l.TryAcquire()
	if ok {
		t.Fatal("expected bucket to be drained")
	}
	if wait <= 0 {
		t.Fatal("expected a positive wait duration once drained")
	}
}

func TestLimiter_SetRateLimitPreservesTokensClamped(t *testing.T) {
	l := New(120)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }
	l.tokens = 100

	l.SetRateLimit(60)
	if l.Tokens() != 60 {
		t.Fatalf("expected tokens clamped to new capacity 60, got %d", l.Tokens())
	}
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	l := New(60)
	fixed := time.Now()
	l.now = func() time.Time { return fixed }
	l.tokens = 0
	l.lastRefill = fixed

	l.now = func() time.Time { return fixed.Add(2 * time.Second) }
	ok, _ := l.TryAcquire()
	if !ok {
		t.Fatal("expected refill after 2 seconds at 1 token/sec to allow an acquire")
	}
}
