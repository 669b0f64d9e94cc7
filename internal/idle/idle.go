// Package idle records page views so background cache warming can stand down when
// nobody is looking at the site and the KMA quota would be spent for nothing.
package idle

import (
	"sync"
	"time"
)

// retention is the longest window Active is asked about.
const retention = 2 * time.Hour

var defaultTracker = NewTracker(time.Now)

// RecordPageView records a weather-decorated page render.
func RecordPageView() { defaultTracker.RecordPageView() }

// Active reports whether any page view happened within window.
func Active(window time.Duration) bool { return defaultTracker.Active(window) }

// Default returns the process-wide tracker.
func Default() *Tracker { return defaultTracker }

// Reset clears the default tracker. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker keeps page-view timestamps for the last two hours.
type Tracker struct {
	mu    sync.Mutex
	now   func() time.Time
	times []time.Time
}

// NewTracker returns an empty Tracker reading time from now (time.Now when nil).
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

func (t *Tracker) RecordPageView() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.times = append(t.times, now)
	t.pruneLocked(now)
}

// ViewCount returns the number of page views within window.
func (t *Tracker) ViewCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	cutoff := now.Add(-window)
	n := 0
	for _, ts := range t.times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// Active reports whether any page view happened within window. A zero or
// negative window always reports active.
func (t *Tracker) Active(window time.Duration) bool {
	if window <= 0 {
		return true
	}
	return t.ViewCount(window) > 0
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.times = nil
}

func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-retention)
	i := 0
	for ; i < len(t.times) && t.times[i].Before(cutoff); i++ {
	}
	if i > 0 {
		t.times = append(t.times[:0], t.times[i:]...)
	}
}
