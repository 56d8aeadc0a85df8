package device

import (
	"context"
	"sync"
	"time"
)

// DefaultStatusTTL bounds how long a cached status is trusted.
const DefaultStatusTTL = time.Hour

// StatusCache holds a TTL-bounded copy of each device's status.
//
// Set stores the whole entry in one operation, so readers never observe a
// status without its transition time. Get reports a miss with ok=false and a
// nil error.
type StatusCache interface {
	Set(ctx context.Context, deviceID string, entry StatusEntry, ttl time.Duration) error
	Get(ctx context.Context, deviceID string) (entry StatusEntry, ok bool, err error)
	Delete(ctx context.Context, deviceID string) error
}

// MemoryStatusCache is an in-process StatusCache used when Redis is disabled.
type MemoryStatusCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	entry     StatusEntry
	expiresAt time.Time
}

// NewMemoryStatusCache creates an empty in-memory status cache.
func NewMemoryStatusCache() *MemoryStatusCache {
	return &MemoryStatusCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Set stores the entry until ttl elapses. A non-positive ttl never expires.
func (c *MemoryStatusCache) Set(_ context.Context, deviceID string, entry StatusEntry, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[deviceID] = memoryEntry{entry: entry, expiresAt: expiresAt}
	c.mu.Unlock()
	return nil
}

// Get returns the entry if present and not expired.
func (c *MemoryStatusCache) Get(_ context.Context, deviceID string) (StatusEntry, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[deviceID]
	c.mu.RUnlock()

	if !ok {
		return StatusEntry{}, false, nil
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[deviceID]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, deviceID)
		}
		c.mu.Unlock()
		return StatusEntry{}, false, nil
	}
	return e.entry, true, nil
}

// Delete removes the entry.
func (c *MemoryStatusCache) Delete(_ context.Context, deviceID string) error {
	c.mu.Lock()
	delete(c.entries, deviceID)
	c.mu.Unlock()
	return nil
}

// size returns the number of stored entries, expired ones included.
func (c *MemoryStatusCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
