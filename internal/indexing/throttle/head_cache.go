// Package throttle keeps the watcher from asking the node the same question
// more often than it needs to.
package throttle

import (
	"context"
	"sync"
	"time"
)

// HeadSource returns the current chain head.
type HeadSource interface {
	ChainHead(ctx context.Context) (uint64, error)
}

// HeadCache caches the chain head for a short TTL. The scanner, the health
// monitor and the wallet service all need the head; one RPC serves them all.
type HeadCache struct {
	source HeadSource
	ttl    time.Duration

	mu       sync.RWMutex
	cached   uint64
	cachedAt time.Time
}

// NewHeadCache creates a new head cache with the given TTL.
func NewHeadCache(source HeadSource, ttl time.Duration) *HeadCache {
	return &HeadCache{
		source: source,
		ttl:    ttl,
	}
}

// ChainHead returns the cached chain head if within TTL, otherwise fetches fresh.
func (c *HeadCache) ChainHead(ctx context.Context) (uint64, error) {
	c.mu.RLock()
	if time.Since(c.cachedAt) < c.ttl && c.cached > 0 {
		cached := c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	head, err := c.source.ChainHead(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	// Never let a lagging node move the cached head backwards.
	if head >= c.cached {
		c.cached = head
	}
	c.cachedAt = time.Now()
	head = c.cached
	c.mu.Unlock()

	return head, nil
}

// Last returns the most recently observed head without any RPC.
func (c *HeadCache) Last() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// Invalidate clears the cache, forcing the next call to fetch fresh data.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.cachedAt = time.Time{}
	c.mu.Unlock()
}
