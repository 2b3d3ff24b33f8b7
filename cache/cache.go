package cache

import (
	"sync"
	"time"

	"github.com/use-agent/sitelens/models"
)

// entry holds a cached report with its creation timestamp.
type entry struct {
	report    *models.Report
	createdAt time.Time
}

// Cache is a simple in-memory cache for analysis reports keyed by host.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
	done       chan struct{}
}

// New creates a new Cache with the given maximum number of entries.
// A background goroutine runs every 5 minutes to evict entries older
// than 1 hour.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        time.Hour,
		done:       make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Get retrieves a cached report if it exists and is younger than maxAge.
// If maxAge <= 0, no cache lookup is performed. The returned report is a
// copy, so callers may mutate it.
func (c *Cache) Get(host string, maxAge time.Duration) (*models.Report, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[host]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	cp := *e.report
	return &cp, true
}

// Set stores a report. If the cache is at capacity, a random entry is
// evicted to make room.
func (c *Cache) Set(host string, report *models.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random, which makes this a random eviction.
	if _, exists := c.store[host]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	cp := *report
	c.store[host] = &entry{
		report:    &cp,
		createdAt: time.Now(),
	}
}

// Len returns the number of cached reports.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Stop terminates the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.done)
}

// cleanupLoop evicts entries older than the TTL every 5 minutes.
func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.ttl)
			c.mu.Lock()
			for k, e := range c.store {
				if e.createdAt.Before(cutoff) {
					delete(c.store, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
