// Package cache provides a thread-safe, in-memory string store with
// TTL-based expiration and bounded size. It holds presigned URLs so that
// gallery listings do not re-sign every object on every fetch.
package cache

import (
	"sort"
	"sync"
	"time"

	"snapify/pkg/logger"
)

const (
	DefaultMaxEntries = 10000
	DefaultTTL        = 30 * time.Minute

	// GCInterval: expired items cleanup frequency.
	GCInterval = 5 * time.Minute
)

type Item struct {
	Value     string
	ExpiresAt time.Time
}

type Options struct {
	Enabled    bool
	MaxEntries int
	TTL        time.Duration
}

type MemoryCache struct {
	sync.RWMutex
	items      map[string]Item
	maxEntries int
	ttl        time.Duration
	enabled    bool

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

var log = logger.Named("cache")

// New initializes the cache and starts the background GC when enabled.
func New(opts Options) *MemoryCache {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	c := &MemoryCache{
		maxEntries: opts.MaxEntries,
		ttl:        opts.TTL,
		enabled:    opts.Enabled,
		stop:       make(chan struct{}),
		now:        time.Now,
	}

	if c.enabled {
		c.items = make(map[string]Item)
		go c.startGC()
		log.Info("URL cache initialized: %d entries max, TTL %s", c.maxEntries, c.ttl)
	} else {
		log.Warn("URL cache is DISABLED via config (running in pass-through mode).")
	}
	return c
}

// TTL reports how long entries live.
func (c *MemoryCache) TTL() time.Duration { return c.ttl }

// Set stores a value with the configured TTL.
func (c *MemoryCache) Set(key, value string) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value that expires after ttl (capped by the cache TTL).
func (c *MemoryCache) SetWithTTL(key, value string, ttl time.Duration) {
	if !c.enabled || ttl <= 0 {
		return
	}
	if ttl > c.ttl {
		ttl = c.ttl
	}

	c.Lock()
	defer c.Unlock()

	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.prune()
	}

	c.items[key] = Item{Value: value, ExpiresAt: c.now().Add(ttl)}
}

// Get retrieves an item if it exists and hasn't expired.
func (c *MemoryCache) Get(key string) (string, bool) {
	if !c.enabled {
		return "", false
	}

	c.RLock()
	defer c.RUnlock()

	item, found := c.items[key]
	if !found || c.now().After(item.ExpiresAt) {
		return "", false
	}
	return item.Value, true
}

// Delete explicitly removes an item from the cache.
func (c *MemoryCache) Delete(key string) {
	if !c.enabled {
		return
	}

	c.Lock()
	delete(c.items, key)
	c.Unlock()
}

// Len returns the number of stored (possibly expired) entries.
func (c *MemoryCache) Len() int {
	if !c.enabled {
		return 0
	}
	c.RLock()
	defer c.RUnlock()
	return len(c.items)
}

// Close stops the GC worker.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// prune evicts entries sorted by expiration until usage drops below 80%.
// Caller holds the write lock.
func (c *MemoryCache) prune() {
	if len(c.items) == 0 {
		return
	}

	target := int(float64(c.maxEntries) * 0.80)

	type candidate struct {
		Key       string
		ExpiresAt time.Time
	}

	candidates := make([]candidate, 0, len(c.items))
	for k, v := range c.items {
		candidates = append(candidates, candidate{k, v.ExpiresAt})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})

	for _, cand := range candidates {
		if len(c.items) <= target {
			break
		}
		delete(c.items, cand.Key)
	}
}

func (c *MemoryCache) removeExpired() int {
	c.Lock()
	defer c.Unlock()

	now := c.now()
	removed := 0
	for k, v := range c.items {
		if now.After(v.ExpiresAt) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) startGC() {
	ticker := time.NewTicker(GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.removeExpired(); n > 0 {
				log.Info("GC: cleaned %d expired URLs", n)
			}
		}
	}
}
