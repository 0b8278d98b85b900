package todoist

import (
	"sync"
	"time"
)

// rateLimiter enforces the Todoist REST budget of 450 requests per
// 15-minute sliding window. It never sleeps; when the budget is spent it
// reports how long until the oldest request falls out of the window so
// callers can surface a retry hint instead of queueing silently.
type rateLimiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	requests []time.Time
	now      func() time.Time
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// acquire records one request, or returns a RateLimitError when the
// window is full.
func (r *rateLimiter) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-r.window)

	kept := r.requests[:0]
	for _, t := range r.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.requests = kept

	if len(r.requests) >= r.max {
		oldest := r.requests[0]
		for _, t := range r.requests[1:] {
			if t.Before(oldest) {
				oldest = t
			}
		}
		return &RateLimitError{RetryAfter: oldest.Add(r.window).Sub(now)}
	}

	r.requests = append(r.requests, now)
	return nil
}
