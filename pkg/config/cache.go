package config

import (
	"fmt"
	"strings"
	"time"
)

type CacheConfig struct {
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`
}

const defaultCacheCapacity = 100
const defaultCacheTTL = time.Hour

// String returns a string representation of the cache configuration.
func (c *CacheConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Cache ---\n")
	b.WriteString(fmt.Sprintf("  capacity: %d\n", c.Capacity))
	b.WriteString(fmt.Sprintf("  ttl: %s\n", c.TTL))
	return b.String()
}

// Validate fills in defaults for unset values and rejects negative ones.
func (c *CacheConfig) Validate() error {
	if c.Capacity < 0 {
		return fmt.Errorf("cache capacity must not be negative: %d", c.Capacity)
	}
	if c.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative: %s", c.TTL)
	}
	if c.Capacity == 0 {
		c.Capacity = defaultCacheCapacity
	}
	if c.TTL == 0 {
		c.TTL = defaultCacheTTL
	}
	return nil
}
