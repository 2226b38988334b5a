package cache

import (
	"sync"

	"github.com/hack3rvirus/parcel-tracker/internal/marker"
)

// MarkerCache holds the marker set built from the latest accepted
// snapshot, so new websocket subscribers get the current picture
// without waiting for the next reconcile pass.
type MarkerCache struct {
	mu  sync.RWMutex
	set marker.Set
	seq uint64
	ok  bool
}

// NewMarkerCache creates a new MarkerCache
func NewMarkerCache() *MarkerCache {
	return &MarkerCache{}
}

// Get returns the cached marker set and its snapshot sequence.
// The bool is false until the first Put.
func (c *MarkerCache) Get() (marker.Set, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set, c.seq, c.ok
}

// Put stores a marker set, but only if seq is not older than the
// cached one. Stale snapshots lose.
func (c *MarkerCache) Put(set marker.Set, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ok && seq < c.seq {
		return false
	}
	c.set = set
	c.seq = seq
	c.ok = true
	return true
}

// Reset clears the cache
func (c *MarkerCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set = marker.Set{}
	c.seq = 0
	c.ok = false
}
