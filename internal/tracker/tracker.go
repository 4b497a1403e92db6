// Package tracker remembers which gift ids have been observed across ticks.
package tracker

import (
	"sort"
	"sync"
)

// KnownGifts is process-scoped: created with the loop, updated every tick and
// read by the reporting path. All access goes through one mutex.
type KnownGifts struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func New() *KnownGifts {
	return &KnownGifts{seen: make(map[string]struct{})}
}

// RecordAndDiff adds every unseen id and returns the ids that were new plus a
// sorted snapshot of the whole set after the update.
func (k *KnownGifts) RecordAndDiff(ids []string) (fresh []string, snapshot []string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := k.seen[id]; ok {
			continue
		}
		k.seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	sort.Strings(fresh)
	return fresh, k.snapshotLocked()
}

// Snapshot returns the sorted set without modifying it.
func (k *KnownGifts) Snapshot() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.snapshotLocked()
}

// Len is the number of ids seen so far.
func (k *KnownGifts) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.seen)
}

func (k *KnownGifts) snapshotLocked() []string {
	out := make([]string, 0, len(k.seen))
	for id := range k.seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
