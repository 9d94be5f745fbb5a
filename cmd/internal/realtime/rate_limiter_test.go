package realtime

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow(now) {
			t.Fatalf("event %d should be allowed", i)
		}
	}
	if rl.Allow(now) {
		t.Fatalf("event over limit should be denied")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(2, time.Second)

	if !rl.Allow(now) || !rl.Allow(now) {
		t.Fatalf("initial events should be allowed")
	}
	if rl.Allow(now.Add(500 * time.Millisecond)) {
		t.Fatalf("event inside window should be denied")
	}
	if !rl.Allow(now.Add(1100 * time.Millisecond)) {
		t.Fatalf("event after window should be allowed")
	}
}

func TestRateLimiter_DefaultsOnInvalidInput(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(0, 0)
	if !rl.Allow(time.Now().UTC()) {
		t.Fatalf("limiter with defaulted config should allow events")
	}
}
