package handlers

import (
	"testing"
	"time"
)

func TestWindowLimiter(t *testing.T) {
	now := time.Date(2024, 5, 20, 9, 0, 45, 0, time.UTC)
	limiter := newWindowLimiter(2, time.Minute, func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.allow("10.0.0.1"); !ok {
			t.Fatalf("hit %d rejected", i)
		}
	}
	ok, wait := limiter.allow("10.0.0.1")
	if ok {
		t.Fatal("expected third hit to be rejected")
	}
	if wait != 15*time.Second {
		t.Fatalf("expected 15s until reset, got %s", wait)
	}
	if ok, _ := limiter.allow("10.0.0.2"); !ok {
		t.Fatal("expected a different key to have its own budget")
	}

	now = now.Add(20 * time.Second)
	if ok, _ := limiter.allow("10.0.0.1"); !ok {
		t.Fatal("expected budget to reset in the next window")
	}
	if len(limiter.counts) != 1 {
		t.Fatalf("expected old buckets to be dropped, got %d", len(limiter.counts))
	}
}

func TestWindowLimiterDisabled(t *testing.T) {
	limiter := newWindowLimiter(0, time.Minute, nil)
	if ok, _ := limiter.allow("any"); !ok {
		t.Fatal("disabled limiter must allow")
	}
}
