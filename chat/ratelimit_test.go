package chat

import (
	"context"
	"testing"
	"time"
)

func TestLimiterBudget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLimiter(ctx, 10, time.Minute)

	for i := 0; i < 10; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("call %d should be allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Fatal("11th call inside the window should be rejected")
	}
	// A rejected call must not consume budget for other keys.
	if !l.Allow("5.6.7.8") {
		t.Fatal("other keys keep their own budget")
	}
}

func TestLimiterWindowSlides(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLimiter(ctx, 2, 50*time.Millisecond)

	if !l.Allow("k") || !l.Allow("k") {
		t.Fatal("first two calls should be allowed")
	}
	if l.Allow("k") {
		t.Fatal("third call inside the window should be rejected")
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("call after the window slid should be allowed")
	}
}

func TestLimiterRejectionHasNoSideEffect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLimiter(ctx, 1, 50*time.Millisecond)

	if !l.Allow("k") {
		t.Fatal("first call should be allowed")
	}
	// Burn rejections; they must not extend the budget accounting.
	for i := 0; i < 5; i++ {
		if l.Allow("k") {
			t.Fatal("call over budget should be rejected")
		}
	}
	time.Sleep(60 * time.Millisecond)
	if !l.Allow("k") {
		t.Fatal("rejections must not have been recorded as calls")
	}
}

func TestLimiterCleanupDropsIdleBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLimiter(ctx, 1, 10*time.Millisecond)

	l.Allow("stale")
	time.Sleep(30 * time.Millisecond)
	l.cleanup()

	l.mu.Lock()
	_, ok := l.buckets["stale"]
	l.mu.Unlock()
	if ok {
		t.Fatal("idle bucket should have been cleaned up")
	}
}
