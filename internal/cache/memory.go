package cache

import (
	"context"
	"sync"
	"time"
)

// entry holds a cached payload with its expiry.
type entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Memory is a TTL-bounded, size-limited in-memory Store.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*entry
	maxEntries int
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewMemory creates a Memory cache that evicts the oldest entry when
// maxEntries is exceeded. A background goroutine prunes expired entries.
func NewMemory(maxEntries int) *Memory {
	c := &Memory{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.ExpiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.Value, true
}

func (c *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict oldest if at capacity and key is not already present.
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	c.entries[key] = &entry{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
	}
}

func (c *Memory) Flush(context.Context) {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}

// Len returns the current number of entries, expired or not.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stop terminates the background cleanup goroutine.
func (c *Memory) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupLoop runs in a goroutine and removes expired entries periodically.
func (c *Memory) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.prune()
		case <-c.stop:
			return
		}
	}
}

// prune removes all expired entries.
func (c *Memory) prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for k, e := range c.entries {
		if now.After(e.ExpiresAt) {
			delete(c.entries, k)
		}
	}
}

// evictOldest removes the entry with the earliest expiry. Caller must hold c.mu.
func (c *Memory) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.ExpiresAt.Before(oldestTime) {
			oldestKey = k
			oldestTime = e.ExpiresAt
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}
