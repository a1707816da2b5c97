// Package cache holds recently used product snapshots in a bounded, time-expiring LRU.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/metric"
)

// Cache maps product ids to snapshots. It does not interpret the snapshots it holds.
type Cache interface {
	// Get returns the snapshot for id, or false on a miss or an expired entry.
	Get(id uuid.UUID) (product.Product, bool)
	// Peek is Get without touching recency or the hit and miss counters.
	Peek(id uuid.UUID) (product.Product, bool)
	// Put stores p under id, replacing any previous snapshot and resetting its expiry.
	Put(id uuid.UUID, p product.Product)
	// Invalidate drops the entry for id, if any.
	Invalidate(id uuid.UUID)
	// Stats reports hit and miss counters and occupancy.
	Stats() Stats
}

// Stats is a point-in-time view of cache usage.
type Stats struct {
	Hits     uint64 `json:"hits"`
	Misses   uint64 `json:"misses"`
	Size     int    `json:"size"`
	Capacity int    `json:"capacity"`
}

// HitRatio is hits over lookups, or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// LRU is a Cache evicting the least recently used entry at capacity and expiring entries ttl after insertion.
type LRU struct {
	entries  *expirable.LRU[uuid.UUID, product.Product]
	capacity int
	hits     atomic.Uint64
	misses   atomic.Uint64
}

var _ Cache = (*LRU)(nil)

// NewLRU creates a cache holding at most capacity entries, each living for ttl.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	return &LRU{
		entries:  expirable.NewLRU[uuid.UUID, product.Product](capacity, nil, ttl),
		capacity: capacity,
	}
}

func (c *LRU) Get(id uuid.UUID) (product.Product, bool) {
	p, ok := c.entries.Get(id)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return p, ok
}

func (c *LRU) Peek(id uuid.UUID) (product.Product, bool) {
	return c.entries.Peek(id)
}

func (c *LRU) Put(id uuid.UUID, p product.Product) {
	c.entries.Add(id, p)
}

func (c *LRU) Invalidate(id uuid.UUID) {
	c.entries.Remove(id)
}

func (c *LRU) Stats() Stats {
	return Stats{
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
		Size:     c.entries.Len(),
		Capacity: c.capacity,
	}
}

// RegisterMetrics exposes the cache statistics as observable instruments on meter.
func (c *LRU) RegisterMetrics(meter metric.Meter) error {
	hits, err := meter.Int64ObservableCounter("catalog_cache_hits", metric.WithDescription("Product cache hits"))
	if err != nil {
		return err
	}
	misses, err := meter.Int64ObservableCounter("catalog_cache_misses", metric.WithDescription("Product cache misses"))
	if err != nil {
		return err
	}
	size, err := meter.Int64ObservableGauge("catalog_cache_size", metric.WithDescription("Products currently cached"))
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		s := c.Stats()
		o.ObserveInt64(hits, int64(s.Hits))
		o.ObserveInt64(misses, int64(s.Misses))
		o.ObserveInt64(size, int64(s.Size))
		return nil
	}, hits, misses, size)
	return err
}
