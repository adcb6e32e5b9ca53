// Package ratelimit provides a sliding-window request limiter keyed by
// client address. The window is in-memory and per-process; it protects the
// provisioning endpoints from a single noisy client, not from a distributed
// flood.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Limiter tracks request timestamps per key in a sliding window. The sliding
// window avoids the burst at every fixed-window boundary.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	limit   int
	window  time.Duration
}

// New builds a Limiter allowing limit requests per key per window.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
}

// Result reports one admission decision.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Allow admits or rejects one request for the key.
func (l *Limiter) Allow(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	kept := l.buckets[key][:0]
	for _, ts := range l.buckets[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.buckets[key] = kept
		return Result{Allowed: false, Remaining: 0, ResetAt: kept[0].Add(l.window)}
	}

	kept = append(kept, now)
	l.buckets[key] = kept
	return Result{
		Allowed:   true,
		Remaining: l.limit - len(kept),
		ResetAt:   kept[0].Add(l.window),
	}
}

// Middleware rejects over-limit requests with 429 and standard rate-limit
// headers. Keys are the client address, so it runs after RealIP.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := l.Allow(clientKey(r))

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetAt).Seconds())+1))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	return r.RemoteAddr
}
