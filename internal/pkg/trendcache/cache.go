// Package trendcache provides a TTL cache for the aggregated trend map.
// Invalidated whenever a new sample is ingested so dashboards never see
// buckets older than the TTL.
package trendcache

import (
	"sync"
	"time"

	"github.com/vitalsentry/vitalsentry-backend/internal/models"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/metrics"
)

type entry struct {
	trends models.TrendMap
	expAt  time.Time
}

// Cache holds the last computed trend map with TTL. Thread-safe.
type Cache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	cur   *entry
}

// New returns a cache with the given TTL. If ttl <= 0, Get always misses
// (cache disabled).
func New(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl}
}

// Get returns the cached trend map if present and not expired. Records
// hit/miss.
func (c *Cache) Get() (models.TrendMap, bool) {
	if c.ttl <= 0 {
		metrics.TrendCacheMissesTotal.Inc()
		return nil, false
	}
	c.mu.RLock()
	e := c.cur
	c.mu.RUnlock()
	if e == nil || time.Now().After(e.expAt) {
		metrics.TrendCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.TrendCacheHitsTotal.Inc()
	return e.trends, true
}

// Set stores the trend map with the configured TTL.
func (c *Cache) Set(trends models.TrendMap) {
	if c.ttl <= 0 || trends == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = &entry{trends: trends, expAt: time.Now().Add(c.ttl)}
}

// Invalidate drops the cached map.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = nil
}
