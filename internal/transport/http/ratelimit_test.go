package http

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(3)

	for i := 0; i < 3; i++ {
		if !limiter.allow(base.Add(time.Duration(i) * time.Second)) {
			t.Fatalf("message %d should be allowed", i)
		}
	}
	if limiter.allow(base.Add(10 * time.Second)) {
		t.Fatal("fourth message in window should be rejected")
	}
	if !limiter.allow(base.Add(time.Minute)) {
		t.Fatal("new window should reset the counter")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	var nilLimiter *rateLimiter
	if !nilLimiter.allow(time.Now()) {
		t.Fatal("nil limiter should allow")
	}

	limiter := newRateLimiter(0)
	for i := 0; i < 1000; i++ {
		if !limiter.allow(time.Now()) {
			t.Fatal("zero limit should allow everything")
		}
	}
}
