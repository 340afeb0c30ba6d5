// Package memory provides an in-process price cache for local development
// and tests. Unlike the Redis provider it does not survive restarts.
package memory

import (
	"context"
	"sync"
)

// Cache is a mutex-guarded map from product title to last persisted price.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// New constructs an empty cache.
func New() *Cache {
	return &Cache{prices: make(map[string]float64)}
}

// Get returns the cached price and whether the title was present.
func (c *Cache) Get(_ context.Context, title string) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[title]
	return price, ok, nil
}

// Set overwrites the cached price for the title.
func (c *Cache) Set(_ context.Context, title string, price float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[title] = price
	return nil
}

// Close implements the cache interface; it performs no action.
func (c *Cache) Close() error {
	return nil
}
