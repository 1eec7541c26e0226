// internal/server/recentops.go
package server

import (
	"sync"
	"time"
)

const recentOpsWindow = time.Hour

// recentOpsTracker counts expensive operations per user over a sliding
// window. Feeds the recent_operations policy attribute.
type recentOpsTracker struct {
	mu  sync.Mutex
	ops map[string][]time.Time
}

func newRecentOpsTracker() *recentOpsTracker {
	return &recentOpsTracker{ops: make(map[string][]time.Time)}
}

func (t *recentOpsTracker) Record(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[userID] = append(t.prune(userID), time.Now())
}

func (t *recentOpsTracker) Count(userID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	pruned := t.prune(userID)
	if len(pruned) == 0 {
		delete(t.ops, userID)
	} else {
		t.ops[userID] = pruned
	}
	return len(pruned)
}

// prune drops entries older than the window. Caller holds the lock.
func (t *recentOpsTracker) prune(userID string) []time.Time {
	cutoff := time.Now().Add(-recentOpsWindow)
	kept := t.ops[userID][:0]
	for _, ts := range t.ops[userID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
