package utils

import (
	"sync"
	"time"
)

type SlidingWindow struct {
	mu     sync.Mutex
	window time.Duration
	hits   []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	return &SlidingWindow{window: window}
}

func (w *SlidingWindow) Add(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trim(now)
	w.hits = append(w.hits, now)
	return len(w.hits)
}

func (w *SlidingWindow) Count(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.trim(now)
	return len(w.hits)
}

func (w *SlidingWindow) trim(now time.Time) {
	cutoff := now.Add(-w.window)
	idx := 0
	for _, hit := range w.hits {
		if hit.After(cutoff) {
			break
		}
		idx++
	}
	w.hits = w.hits[idx:]
}

// RateLimiter allows at most limit hits per key inside the window.
type RateLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	windows map[string]*SlidingWindow
}

// NewRateLimiter returns a limiter; a limit of zero or less disables it.
func NewRateLimiter(window time.Duration, limit int) *RateLimiter {
	return &RateLimiter{
		window:  window,
		limit:   limit,
		windows: make(map[string]*SlidingWindow),
	}
}

// Allow records a hit for key and reports whether it is within the limit.
// Rejected hits are not recorded.
func (r *RateLimiter) Allow(key string, now time.Time) bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	window := r.windows[key]
	if window == nil {
		window = NewSlidingWindow(r.window)
		r.windows[key] = window
	}
	r.mu.Unlock()

	window.mu.Lock()
	defer window.mu.Unlock()
	window.trim(now)
	if len(window.hits) >= r.limit {
		return false
	}
	window.hits = append(window.hits, now)
	return true
}

// Prune forgets keys with no hits left in the window.
func (r *RateLimiter) Prune(now time.Time) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, window := range r.windows {
		if window.Count(now) == 0 {
			delete(r.windows, key)
		}
	}
}
