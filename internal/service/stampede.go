package service

import (
	"sync"
)

// stampedeTracker counts misses in progress per feed. Overlapping misses each
// call upstream; the count only feeds the stampede metrics.
type stampedeTracker struct {
	mu           sync.Mutex
	activeMisses map[string]int
}

func newStampedeTracker() *stampedeTracker {
	return &stampedeTracker{
		activeMisses: make(map[string]int),
	}
}

// RecordMiss records a miss for feed and returns the number now in progress.
// Callers pair it with RecordHit once the upstream call returns.
func (st *stampedeTracker) RecordMiss(feed string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.activeMisses[feed]++
	return st.activeMisses[feed]
}

// RecordHit ends one miss for feed.
func (st *stampedeTracker) RecordHit(feed string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if count, ok := st.activeMisses[feed]; ok && count > 0 {
		st.activeMisses[feed]--
		if st.activeMisses[feed] == 0 {
			delete(st.activeMisses, feed)
		}
	}
}

// InProgress returns the number of misses currently in progress for feed.
func (st *stampedeTracker) InProgress(feed string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.activeMisses[feed]
}
