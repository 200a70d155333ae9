package cache

import (
	"sync"
	"time"
)

// Cache is a small in-process map whose entries expire. Expired entries are
// dropped lazily on read and by Sweep.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time
	m   map[string]entry
}

type entry struct {
	val any
	exp time.Time
}

// New returns a cache whose Set entries live for ttl (5s when ttl <= 0).
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	return &Cache{
		ttl: ttl,
		now: time.Now,
		m:   make(map[string]entry),
	}
}

// WithClock is for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.now = now
	return c
}

func (c *Cache) Get(key string) (any, bool) {
	now := c.now()
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !now.Before(e.exp) {
		c.mu.Lock()
		// re-check: a concurrent SetUntil may have refreshed it
		if cur, ok := c.m[key]; ok && !now.Before(cur.exp) {
			delete(c.m, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	return e.val, true
}

func (c *Cache) Set(key string, val any) {
	c.SetUntil(key, val, c.now().Add(c.ttl))
}

// SetUntil stores val until exp. An exp in the past is a no-op.
func (c *Cache) SetUntil(key string, val any, exp time.Time) {
	if !c.now().Before(exp) {
		return
	}
	c.mu.Lock()
	c.m[key] = entry{val: val, exp: exp}
	c.mu.Unlock()
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

// Sweep removes expired entries and reports how many it removed.
func (c *Cache) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.m {
		if !now.Before(e.exp) {
			delete(c.m, k)
			removed++
		}
	}
	return removed
}

// Len counts stored entries, expired ones not yet swept included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
