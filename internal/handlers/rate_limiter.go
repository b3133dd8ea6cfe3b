package handlers

import (
	"sync"
	"time"
)

// windowLimiter counts requests per key in fixed windows aligned to the clock, so every key
// resets at the same instant. Buckets from earlier windows are dropped on the first call of a
// new window.
type windowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current time.Time
	counts  map[string]int
}

func newWindowLimiter(limit int, window time.Duration, now func() time.Time) *windowLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &windowLimiter{limit: limit, window: window, now: now, counts: make(map[string]int)}
}

// allow records a hit for key. When the key is over its limit it returns false and the time
// left until the window rolls over.
func (l *windowLimiter) allow(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	if key == "" {
		key = "unknown"
	}
	now := l.now()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !start.Equal(l.current) {
		l.current = start
		clear(l.counts)
	}
	if l.counts[key] >= l.limit {
		return false, start.Add(l.window).Sub(now)
	}
	l.counts[key]++
	return true, 0
}
