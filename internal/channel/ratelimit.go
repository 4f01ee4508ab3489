package channel

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// RateLimiter is a per-key sliding-window limiter. A zero limit disables it.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	requests map[string][]time.Time
}

func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		limit:    requestsPerMinute,
		window:   time.Minute,
		requests: make(map[string][]time.Time),
	}
}

// Allow records a request for key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.allowAt(key, time.Now())
}

func (rl *RateLimiter) allowAt(key string, now time.Time) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-rl.window)
	kept := rl.requests[key][:0]
	for _, t := range rl.requests[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= rl.limit {
		rl.requests[key] = kept
		return false
	}
	rl.requests[key] = append(kept, now)
	return true
}

// Reset clears tracking for one key, or for all keys when key is empty.
func (rl *RateLimiter) Reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if key == "" {
		rl.requests = make(map[string][]time.Time)
		return
	}
	delete(rl.requests, key)
}

// limiterKey picks the rate-limit key for a request: an explicit
// X-Rate-Limit-Key header when present, else the peer host.
func limiterKey(r *http.Request) string {
	if key := r.Header.Get("X-Rate-Limit-Key"); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeRateLimited(rw http.ResponseWriter) {
	rw.Header().Set("Retry-After", "60")
	writeJSONError(rw, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}
