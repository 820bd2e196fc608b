package application

import (
	"strconv"
	"sync"
	"time"

	"github.com/example/conference-scheduler/internal/diff"
)

// compareCache keeps recently computed version diffs. Stored versions never
// change, so entries only expire to bound memory.
type compareCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]compareCacheEntry
}

type compareCacheEntry struct {
	diff      diff.Diff
	expiresAt time.Time
}

func newCompareCache(ttl time.Duration, maxEntries int, now func() time.Time) *compareCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &compareCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]compareCacheEntry),
	}
}

func (c *compareCache) Get(key string) (diff.Diff, bool) {
	if c == nil {
		return diff.Diff{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return diff.Diff{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return diff.Diff{}, false
	}
	return cloneDiff(entry.diff), true
}

func (c *compareCache) Store(key string, d diff.Diff) {
	if c == nil {
		return
	}
	cloned := cloneDiff(d)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = compareCacheEntry{diff: cloned, expiresAt: expiry}
}

func (c *compareCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *compareCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *compareCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

// cloneDiff copies the cell slice; the rest of a Diff is never mutated.
func cloneDiff(d diff.Diff) diff.Diff {
	d.Cells = append([]diff.CellDiff(nil), d.Cells...)
	return d
}

func compareKey(from, to int) string {
	return strconv.Itoa(from) + "->" + strconv.Itoa(to)
}
