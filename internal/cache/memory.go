package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
)

// Memory wraps patrickmn/go-cache for in-process attribute caching.
// Entries expire after ttl; a non-positive ttl keeps them for the pipeline lifetime.
type Memory struct {
	cache *gocache.Cache

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewMemory creates an in-process cache whose entries live for ttl
func NewMemory(ttl time.Duration) *Memory {
	expiration, cleanup := ttl, ttl/2
	if ttl <= 0 {
		expiration, cleanup = gocache.NoExpiration, 0
	}

	return &Memory{
		cache: gocache.New(expiration, cleanup),
	}
}

// Get returns the cached attributes for an event id
func (c *Memory) Get(_ context.Context, eventID string) (domain.Attributes, bool) {
	v, found := c.cache.Get(eventID)
	if !found {
		c.misses.Add(1)
		return domain.Attributes{}, false
	}

	attrs, ok := v.(domain.Attributes)
	if !ok {
		c.misses.Add(1)
		return domain.Attributes{}, false
	}

	c.hits.Add(1)
	return attrs, true
}

// Set stores attributes for an event id, replacing any previous set
func (c *Memory) Set(_ context.Context, eventID string, attrs domain.Attributes) {
	c.cache.SetDefault(eventID, attrs)
}

// Stats returns cache usage counters
func (c *Memory) Stats() Stats {
	return Stats{
		Backend: "memory",
		Entries: c.cache.ItemCount(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

var _ Cache = (*Memory)(nil)
