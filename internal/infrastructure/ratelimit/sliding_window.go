// Package ratelimit provides in-memory admission control.
package ratelimit

import (
	"sync"
	"time"

	"github.com/doeshing/replybot/internal/ports"
)

// SlidingWindow admits at most max operations in any window of the given
// duration. State lives in memory only and resets on restart.
type SlidingWindow struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	now    func() time.Time
	stamps []time.Time
}

// Option customises a SlidingWindow.
type Option func(*SlidingWindow)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *SlidingWindow) {
		w.now = now
	}
}

// NewSlidingWindow builds a limiter admitting max operations per window.
func NewSlidingWindow(max int, window time.Duration, opts ...Option) *SlidingWindow {
	w := &SlidingWindow{
		max:    max,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// TryAcquire prunes expired timestamps, then records now if capacity remains.
// The check and the record happen under one lock.
func (w *SlidingWindow) TryAcquire() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.prune(now)
	if len(w.stamps) >= w.max {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// CurrentCount reports admissions still inside the window.
func (w *SlidingWindow) CurrentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}

// Reset forgets every recorded admission.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamps = nil
}

func (w *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && w.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

var _ ports.AdmissionLimiter = (*SlidingWindow)(nil)
