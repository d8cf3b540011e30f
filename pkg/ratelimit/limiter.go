package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a short-horizon request limiter used as a client-side burst guard.
type Limiter interface {
	// Allow records a request and reports whether it fits the limit.
	Allow() bool
	// Wait blocks until a request is allowed or ctx is done.
	Wait(ctx context.Context) error
	// Reset forgets all recorded requests.
	Reset()
}

// SlidingWindow allows at most maxRequests in any windowSize interval
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

func (sw *SlidingWindow) Allow() bool {
	_, ok := sw.reserve()
	return ok
}

// reserve records a request if it fits, otherwise returns how long until the
// oldest request leaves the window.
func (sw *SlidingWindow) reserve() (time.Duration, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return 0, true
	}
	if len(sw.requests) == 0 {
		return 100 * time.Millisecond, false
	}
	return sw.windowSize - now.Sub(sw.requests[0]), false
}

func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for {
		wait, ok := sw.reserve()
		if ok {
			return nil
		}
		if wait <= 0 {
			wait = time.Millisecond
		}
		if err := (SystemClock{}).Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.requests = sw.requests[:0]
}

// cleanOldRequests drops requests that fell out of the window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	if i > 0 {
		n := copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:n]
	}
}
