package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/platinummonkey/pawndoc/pkg/scanner"
)

// Scanner is the part of scanner.Scanner the cache wraps
type Scanner interface {
	Scan(name, src string) *scanner.Metadata
}

// Config holds cache configuration
type Config struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultConfig returns default cache configuration
func DefaultConfig() *Config {
	return &Config{
		MaxEntries: 512,
		TTL:        30 * time.Minute,
	}
}

// Stats holds cache statistics
type Stats struct {
	Hits      int64
	Misses    int64
	ItemCount int64
	HitRate   float64
}

// ScanCache memoises scan results keyed by plugin name and source content.
// Results are cloned on the way in and out so callers may modify them.
type ScanCache struct {
	config *Config
	inner  Scanner
	cache  *lru.LRU[string, *scanner.Metadata]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewScanCache wraps inner with an expiring LRU cache
func NewScanCache(inner Scanner, config *Config) *ScanCache {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxEntries < 1 {
		config.MaxEntries = 1
	}

	return &ScanCache{
		config: config,
		inner:  inner,
		cache:  lru.NewLRU[string, *scanner.Metadata](config.MaxEntries, nil, config.TTL),
	}
}

// Key returns the cache key for a plugin source
func Key(name, src string) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(src))
	return hex.EncodeToString(h.Sum(nil))
}

// Scan returns the cached metadata for src or scans it
func (c *ScanCache) Scan(name, src string) *scanner.Metadata {
	key := Key(name, src)

	if md, ok := c.cache.Get(key); ok {
		c.hits.Add(1)
		return md.Clone()
	}

	c.misses.Add(1)
	md := c.inner.Scan(name, src)
	c.cache.Add(key, md.Clone())
	return md
}

// ScanFile reads the source at path and scans it through the cache
func (c *ScanCache) ScanFile(ctx context.Context, name, path string) (*scanner.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source %s: %w", path, err)
	}

	return c.Scan(name, string(data)), nil
}

// Stats returns cache statistics
func (c *ScanCache) Stats() Stats {
	stats := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		ItemCount: int64(c.cache.Len()),
	}

	total := stats.Hits + stats.Misses
	if total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}

// Purge drops every cached result
func (c *ScanCache) Purge() {
	c.cache.Purge()
}
