package instagram

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when the send budget for the window is spent.
var ErrRateLimited = errors.New("instagram: send rate limit reached")

// RateLimiter enforces a sliding-window cap on outbound sends.
type RateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	stamps []time.Time
	now    func() time.Time
}

// NewRateLimiter caps sends at max per window. A non-positive max disables
// the limiter.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// CanMakeRequest reports whether a send would fit in the current window.
func (r *RateLimiter) CanMakeRequest() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max <= 0 {
		return true
	}
	r.prune(r.now())
	return len(r.stamps) < r.max
}

// Record counts one send against the window.
func (r *RateLimiter) Record() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max <= 0 {
		return
	}
	now := r.now()
	r.prune(now)
	r.stamps = append(r.stamps, now)
}

// Allow atomically checks and records a send. It returns ErrRateLimited
// without recording when the window is full.
func (r *RateLimiter) Allow() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max <= 0 {
		return nil
	}
	now := r.now()
	r.prune(now)
	if len(r.stamps) >= r.max {
		return ErrRateLimited
	}
	r.stamps = append(r.stamps, now)
	return nil
}

// prune drops stamps that have aged out of the window. Caller holds mu.
func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	kept := r.stamps[:0]
	for _, t := range r.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.stamps = kept
}
