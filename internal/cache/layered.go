package cache

import "time"

// LayeredCache serves SPARQL rows from memory and falls back to disk,
// so a restarted process answers from the previous run's results.
type LayeredCache struct {
	memory    *MemoryCache
	memoryTTL time.Duration
	disk      *DiskCache
}

// NewLayeredCache creates a memory layer with memoryTTL over a disk layer in diskDir.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory:    NewMemoryCache(memoryTTL, 10*time.Minute),
		memoryTTL: memoryTTL,
		disk:      NewDiskCache(diskDir, diskTTL),
	}
}

// Get checks memory, then disk. A disk hit is copied to memory for
// whatever is shorter: the memory TTL or the entry's remaining life.
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, ok := c.memory.Get(key); ok {
		return val, true
	}

	entry, ok := c.disk.lookup(key)
	if !ok {
		return nil, false
	}
	ttl := entry.ExpiresAt.Sub(c.disk.now())
	if c.memoryTTL > 0 && c.memoryTTL < ttl {
		ttl = c.memoryTTL
	}
	if ttl > 0 {
		_ = c.memory.Set(key, entry.Data, ttl)
	}
	return entry.Data, true
}

// Set writes to disk first; the memory copy is only made once the disk
// write succeeded, so both layers agree after an error.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.disk.Set(key, value, ttl); err != nil {
		return err
	}
	if ttl < 0 {
		return c.memory.Delete(key)
	}
	memTTL := ttl
	if memTTL == 0 || (c.memoryTTL > 0 && c.memoryTTL < memTTL) {
		memTTL = c.memoryTTL
	}
	return c.memory.Set(key, value, memTTL)
}

// Delete removes key from both layers.
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

// Clear empties both layers.
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

// Prune removes expired entries from the disk layer.
func (c *LayeredCache) Prune() (int, error) {
	return c.disk.Prune()
}
