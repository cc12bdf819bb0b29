package middleware

import (
	"testing"
	"time"
)

func TestRateLimiterAllowWithinLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.Allow("ip") {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if rl.Allow("ip") {
		t.Fatalf("request over limit should be denied")
	}
	if !rl.Allow("other-ip") {
		t.Fatalf("separate key should have its own budget")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiterWithNow(1, time.Minute, func() time.Time { return now })

	if !rl.Allow("ip") {
		t.Fatalf("first request should pass")
	}
	if rl.Allow("ip") {
		t.Fatalf("second request in window should fail")
	}

	now = now.Add(61 * time.Second)
	if !rl.Allow("ip") {
		t.Fatalf("request after window should pass")
	}
}

func TestRateLimiterPrunesStaleWindows(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiterWithNow(1, time.Minute, func() time.Time { return now })

	rl.Allow("a")
	rl.Allow("b")

	now = now.Add(2 * time.Minute)
	rl.Allow("c")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.windows) != 1 {
		t.Fatalf("expected stale windows pruned, have %d", len(rl.windows))
	}
}
