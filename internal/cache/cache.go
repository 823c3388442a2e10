// Package cache is the in-memory cache shared by the servers: form sessions and
// the results of external lookups live here.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a thin wrapper around go-cache with a default expiration.
type Cache struct {
	c          *gocache.Cache
	expiration time.Duration
}

// New creates a cache whose entries expire after defaultExpiration unless a
// different duration is given to Set.
func New(defaultExpiration time.Duration) *Cache {
	return &Cache{
		c:          gocache.New(defaultExpiration, 2*defaultExpiration),
		expiration: defaultExpiration,
	}
}

// Set stores a value. A zero ttl means the default expiration.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.c.Set(key, value, ttl)
}

// Get returns the value stored under key.
func (c *Cache) Get(key string) (any, bool) {
	return c.c.Get(key)
}

// Touch re-stores an existing entry so its expiration slides forward.
func (c *Cache) Touch(key string, ttl time.Duration) bool {
	v, found := c.c.Get(key)
	if !found {
		return false
	}
	c.Set(key, v, ttl)
	return true
}

func (c *Cache) Delete(key string) {
	c.c.Delete(key)
}

// Len returns the number of items, including expired ones not yet evicted.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}
