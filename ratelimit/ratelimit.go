// Package ratelimit provides per-key request limiters for public endpoints.
package ratelimit

import (
	"sync"
	"time"
)

// Default limits for the public verification endpoint
const (
	DefaultLimit  = 25
	DefaultWindow = 60 * time.Second
)

// Limiter decides whether a request identified by key may proceed
type Limiter interface {
	Allow(key string) bool
}

// counter holds the hits of the current and the previous window-aligned
// bucket of one key
type counter struct {
	start time.Time
	curr  int
	prev  int
}

// roll moves c to the bucket starting at start
func (c *counter) roll(start time.Time, w time.Duration) {
	if !start.After(c.start) {
		return
	}
	if start.Sub(c.start) == w {
		c.prev = c.curr
	} else {
		c.prev = 0
	}
	c.curr = 0
	c.start = start
}

// rate estimates the hits of the last w by weighting the previous bucket
// with the share of it that still lies inside the sliding window
func (c *counter) rate(now time.Time, w time.Duration) float64 {
	weight := 1 - float64(now.Sub(c.start))/float64(w)
	return float64(c.prev)*weight + float64(c.curr)
}

// wait returns how long until rate drops below limit
func (c *counter) wait(now time.Time, w time.Duration, limit int) time.Duration {
	elapsed := now.Sub(c.start)
	if c.curr >= limit {
		// the current bucket becomes the previous one and has to decay
		extra := time.Duration(float64(w) * (1 - float64(limit)/float64(c.curr)))
		return w - elapsed + extra
	}
	if c.prev == 0 {
		return 0
	}
	need := time.Duration(float64(w) * (1 - float64(limit-c.curr)/float64(c.prev)))
	if need <= elapsed {
		return 0
	}
	return need - elapsed
}

// MemoryLimiter is a sliding window limiter kept in process memory. It
// approximates the window with two fixed buckets, the way fiber's
// limiter.SlidingWindow does. Stale keys are pruned lazily while serving
// requests.
type MemoryLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu        sync.Mutex
	counters  map[string]*counter
	lastPrune time.Time
}

// NewMemoryLimiter creates a MemoryLimiter allowing limit requests per window
func NewMemoryLimiter(limit int, w time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if w <= 0 {
		w = DefaultWindow
	}
	return &MemoryLimiter{
		limit:    limit,
		window:   w,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

// WithClock replaces the clock; used by tests
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	l.now = now
	return l
}

// Allow implements the Limiter interface
func (l *MemoryLimiter) Allow(key string) bool {
	now := l.now()
	bucket := now.Truncate(l.window)
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)
	c, ok := l.counters[key]
	if !ok {
		c = &counter{start: bucket}
		l.counters[key] = c
	}
	c.roll(bucket, l.window)
	if c.rate(now, l.window) >= float64(l.limit) {
		return false
	}
	c.curr++
	return true
}

// RetryAfter returns how long key has to wait until a request is allowed
// again
func (l *MemoryLimiter) RetryAfter(key string) time.Duration {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	c, ok := l.counters[key]
	if !ok {
		return 0
	}
	c.roll(now.Truncate(l.window), l.window)
	return c.wait(now, l.window, l.limit)
}

// prune drops keys without hits in the last two buckets, at most once per
// window; callers hold mu
func (l *MemoryLimiter) prune(now time.Time) {
	if now.Sub(l.lastPrune) < l.window {
		return
	}
	for k, c := range l.counters {
		if now.Sub(c.start) >= 2*l.window {
			delete(l.counters, k)
		}
	}
	l.lastPrune = now
}

// size returns the number of tracked keys
func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}
