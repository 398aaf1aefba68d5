package windowcache

import (
	"context"
	"sync"
	"time"
)

type windowEntry struct {
	members map[string]struct{}
	expiry  time.Time
}

// MemoryCache is an in-process WindowCache used by unit and race tests.
// It preserves the key-level expiry semantics §4.1-1 requires: any Add
// within the window refreshes the whole key's TTL, and expiry is
// checked lazily on read.
type MemoryCache struct {
	mu         sync.Mutex
	windows    map[string]*windowEntry
	cooldowns  map[string]time.Time
	blacklist  map[string]time.Time // zero time = indefinite
	now        func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		windows:   make(map[string]*windowEntry),
		cooldowns: make(map[string]time.Time),
		blacklist: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (c *MemoryCache) AddCaller(ctx context.Context, b, a string, window time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	e, ok := c.windows[b]
	if !ok || now.After(e.expiry) {
		e = &windowEntry{members: make(map[string]struct{})}
		c.windows[b] = e
	}
	e.members[a] = struct{}{}
	e.expiry = now.Add(window)
	return nil
}

func (c *MemoryCache) DistinctCount(ctx context.Context, b string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.liveEntry(b)
	if e == nil {
		return 0, nil
	}
	return len(e.members), nil
}

func (c *MemoryCache) DistinctMembers(ctx context.Context, b string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.liveEntry(b)
	if e == nil {
		return nil, nil
	}
	out := make([]string, 0, len(e.members))
	for m := range e.members {
		out = append(out, m)
	}
	return out, nil
}

// liveEntry must be called with c.mu held.
func (c *MemoryCache) liveEntry(b string) *windowEntry {
	e, ok := c.windows[b]
	if !ok {
		return nil
	}
	if c.now().After(e.expiry) {
		delete(c.windows, b)
		return nil
	}
	return e
}

func (c *MemoryCache) SetCooldown(ctx context.Context, b string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cooldowns[b] = c.now().Add(ttl)
	return nil
}

func (c *MemoryCache) InCooldown(ctx context.Context, b string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.cooldowns[b]
	if !ok {
		return false, nil
	}
	if c.now().After(until) {
		delete(c.cooldowns, b)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) IsBlacklisted(ctx context.Context, ip string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.blacklist[ip]
	if !ok {
		return false, nil
	}
	if !until.IsZero() && c.now().After(until) {
		delete(c.blacklist, ip)
		return false, nil
	}
	return true, nil
}

func (c *MemoryCache) AddBlacklist(ctx context.Context, ip string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl <= 0 {
		c.blacklist[ip] = time.Time{}
		return nil
	}
	c.blacklist[ip] = c.now().Add(ttl)
	return nil
}
