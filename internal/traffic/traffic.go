// Package traffic keeps short sliding windows of upstream outcomes and rate-limit
// denials. /health reads the error ratio; /metrics exposes the window counts.
package traffic

import (
	"sync"
	"time"
)

// MaxWindow bounds how far back any query may look; older timestamps are pruned.
const MaxWindow = 5 * time.Minute

var defaultTracker = NewTracker(time.Now)

// RecordSuccess records a successful upstream call.
func RecordSuccess() { defaultTracker.RecordSuccess() }

// RecordError records a failed upstream call (transport error, timeout, bad status).
func RecordError() { defaultTracker.RecordError() }

// RecordDenied records a rate-limit denial (429).
func RecordDenied() { defaultTracker.RecordDenied() }

// RequestCount returns successes + errors + denials within window.
func RequestCount(window time.Duration) int { return defaultTracker.RequestCount(window) }

// DenialCount returns denials within window.
func DenialCount(window time.Duration) int { return defaultTracker.DenialCount(window) }

// ErrorRate returns (errors, successes+errors) within window.
func ErrorRate(window time.Duration) (errors, total int) { return defaultTracker.ErrorRate(window) }

// Reset clears the default tracker. For tests only.
func Reset() { defaultTracker.Reset() }

// Tracker maintains sliding windows of outcome timestamps.
type Tracker struct {
	mu           sync.Mutex
	now          func() time.Time
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
}

// NewTracker returns an empty Tracker reading time from now (time.Now when nil).
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now}
}

func (t *Tracker) RecordSuccess() { t.record(&t.successTimes) }

func (t *Tracker) RecordError() { t.record(&t.errorTimes) }

func (t *Tracker) RecordDenied() { t.record(&t.deniedTimes) }

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

func (t *Tracker) RequestCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return countSince(t.successTimes, cutoff) +
		countSince(t.errorTimes, cutoff) +
		countSince(t.deniedTimes, cutoff)
}

func (t *Tracker) DenialCount(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.deniedTimes, t.now().Add(-window))
}

// ErrorRate excludes denials from both numerator and denominator.
func (t *Tracker) ErrorRate(window time.Duration) (errors, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	errCount := countSince(t.errorTimes, cutoff)
	return errCount, errCount + countSince(t.successTimes, cutoff)
}

func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than MaxWindow. Slices are in append order.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-MaxWindow)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.deniedTimes)
}
