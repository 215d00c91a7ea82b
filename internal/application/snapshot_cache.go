package application

import (
	"context"
	"sync"
	"time"
)

// MemorySnapshotCache keeps pulled booking sets in process until they expire
// or a mutation invalidates them.
type MemorySnapshotCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	entries    map[string]snapshotCacheEntry
}

type snapshotCacheEntry struct {
	snapshot  SyncSnapshot
	expiresAt time.Time
}

// NewMemorySnapshotCache constructs an in-process cache.
func NewMemorySnapshotCache(ttl time.Duration, maxEntries int, now func() time.Time) *MemorySnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 16
	}
	if now == nil {
		now = time.Now
	}
	return &MemorySnapshotCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]snapshotCacheEntry),
	}
}

// Get returns a copy of the cached snapshot for scope.
func (c *MemorySnapshotCache) Get(_ context.Context, scope string) (SyncSnapshot, bool) {
	if c == nil {
		return SyncSnapshot{}, false
	}
	c.mu.RLock()
	entry, ok := c.entries[scope]
	c.mu.RUnlock()
	if !ok {
		return SyncSnapshot{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, scope)
		c.mu.Unlock()
		return SyncSnapshot{}, false
	}
	return cloneSnapshot(entry.snapshot), true
}

// Store caches snapshot for scope until the TTL elapses.
func (c *MemorySnapshotCache) Store(_ context.Context, scope string, snapshot SyncSnapshot) {
	if c == nil {
		return
	}
	cloned := cloneSnapshot(snapshot)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[scope] = snapshotCacheEntry{snapshot: cloned, expiresAt: expiry}
}

// Invalidate drops every cached snapshot.
func (c *MemorySnapshotCache) Invalidate(context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.entries = make(map[string]snapshotCacheEntry)
	c.mu.Unlock()
}

func (c *MemorySnapshotCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemorySnapshotCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneSnapshot(snapshot SyncSnapshot) SyncSnapshot {
	out := snapshot
	if snapshot.Bookings != nil {
		out.Bookings = make([]Booking, len(snapshot.Bookings))
		copy(out.Bookings, snapshot.Bookings)
	}
	return out
}
