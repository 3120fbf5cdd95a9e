package http

import "time"

// rateLimiter counts messages in fixed one-minute windows. It is owned by a
// single read loop and is not safe for concurrent use.
type rateLimiter struct {
	limit  int
	window time.Duration
	start  time.Time
	count  int
}

func newRateLimiter(limit int) *rateLimiter {
	if limit <= 0 {
		return &rateLimiter{}
	}
	return &rateLimiter{
		limit:  limit,
		window: time.Minute,
	}
}

func (r *rateLimiter) allow(now time.Time) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	if r.start.IsZero() || now.Sub(r.start) >= r.window {
		r.start = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
