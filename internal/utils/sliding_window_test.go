package utils

import (
	"testing"
	"time"
)

func TestSlidingWindow(t *testing.T) {
	window := NewSlidingWindow(10 * time.Second)
	base := time.Unix(0, 0)
	window.Add(base)
	window.Add(base.Add(5 * time.Second))
	count := window.Add(base.Add(11 * time.Second))
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(10*time.Minute, 2)
	base := time.Unix(0, 0)

	if !limiter.Allow("u1", base) || !limiter.Allow("u1", base.Add(time.Minute)) {
		t.Fatalf("expected first two hits allowed")
	}
	if limiter.Allow("u1", base.Add(2*time.Minute)) {
		t.Fatalf("expected third hit rejected")
	}
	if !limiter.Allow("u2", base.Add(2*time.Minute)) {
		t.Fatalf("expected other key allowed")
	}
	if !limiter.Allow("u1", base.Add(10*time.Minute+time.Second)) {
		t.Fatalf("expected hit allowed once the first expired")
	}

	limiter.Prune(base.Add(time.Hour))
	if len(limiter.windows) != 0 {
		t.Fatalf("expected idle keys pruned, got %d", len(limiter.windows))
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(time.Minute, 0)
	for i := 0; i < 10; i++ {
		if !limiter.Allow("u1", time.Unix(0, 0)) {
			t.Fatalf("disabled limiter rejected a hit")
		}
	}
}
