package chat

import (
	"context"
	"sync"
	"time"
)

// Limiter is a sliding-window call budget keyed by an arbitrary bucket
// string (typically a caller address, or address+route). Allow records the
// call and returns true while the trailing window holds fewer than limit
// calls; once the budget is exhausted it returns false without side effects.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	window  time.Duration
}

type bucket struct {
	calls    []time.Time
	lastSeen time.Time
}

// NewLimiter creates a limiter and starts a cleanup goroutine that drops
// idle buckets until ctx is cancelled.
func NewLimiter(ctx context.Context, limit int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		limit:   limit,
		window:  window,
	}
	go l.cleanupLoop(ctx)
	return l
}

// Allow reports whether a call under key fits the budget, recording it if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{calls: []time.Time{now}, lastSeen: now}
		return true
	}

	// Drop calls that have aged out of the window.
	cutoff := now.Add(-l.window)
	kept := b.calls[:0]
	for _, t := range b.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.calls = kept
	b.lastSeen = now

	if len(b.calls) >= l.limit {
		return false
	}
	b.calls = append(b.calls, now)
	return true
}

// Window returns the configured window, used by handlers for Retry-After.
func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

// cleanup removes buckets idle for more than two windows.
func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) > l.window*2 {
			delete(l.buckets, key)
		}
	}
}
