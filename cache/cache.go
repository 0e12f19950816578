// Package cache implements the multi-level cache (L1 memory, optional L2
// redis, optional L3 disk) described by spec.md section 4.4: probe
// L1->L2->L3 on Get, populating higher levels on a lower-level hit;
// write through every enabled level on Set.
package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotFound is returned by Cache.Get when no enabled level holds key.
var ErrNotFound = errors.New("cache: not found")

// Config configures the levels a Cache composes. Leaving RedisAddr or
// DiskPath empty disables that level entirely.
type Config struct {
	L1MaxBytes           int
	DefaultTTL           time.Duration
	CompressionThreshold int

	RedisAddr string
	RedisDB   int

	DiskPath string
	DiskTTL  time.Duration
	DiskMax  int64
}

// Cache composes up to three levels and implements the promotion
// protocol and single-flight build-once-per-key concurrency spec.md
// section 4.4 names.
type Cache struct {
	l1 *memoryLevel
	l2 *redisLevel
	l3 *diskLevel

	compressionThreshold int
	defaultTTL           time.Duration

	sf singleflight.Group
}

// New builds a Cache from cfg. L1 is always present; L2 and L3 are built
// only when their respective config fields are set.
func New(cfg Config) (*Cache, error) {
	if cfg.L1MaxBytes <= 0 {
		cfg.L1MaxBytes = 32 << 20
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = time.Minute
	}

	c := &Cache{
		l1:                   newMemoryLevel(cfg.L1MaxBytes),
		compressionThreshold: cfg.CompressionThreshold,
		defaultTTL:           cfg.DefaultTTL,
	}

	if cfg.RedisAddr != "" {
		c.l2 = newRedisLevel(cfg.RedisAddr, cfg.RedisDB)
	}

	if cfg.DiskPath != "" {
		l3, err := newDiskLevel(cfg.DiskPath, cfg.DiskTTL, cfg.DiskMax)
		if err != nil {
			return nil, err
		}
		c.l3 = l3
	}

	return c, nil
}

// Get probes L1, then L2, then L3, populating every higher level it
// passes through on its way back up, per spec.md's Get protocol.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if blob, ok := c.l1.get(key); ok {
		return decode(blob)
	}

	if c.l2 != nil {
		if blob, ok := c.l2.get(ctx, key); ok {
			c.l1.set(key, blob, c.defaultTTL)
			return decode(blob)
		}
	}

	if c.l3 != nil {
		if blob, ok := c.l3.get(key); ok {
			if c.l2 != nil {
				c.l2.set(ctx, key, blob, c.defaultTTL)
			}
			c.l1.set(key, blob, c.defaultTTL)
			return decode(blob)
		}
	}

	return nil, ErrNotFound
}

// Set writes value to every enabled level with ttl, compressing values
// at or above the configured threshold.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	blob := encode(value, c.compressionThreshold)

	c.l1.set(key, blob, ttl)
	if c.l2 != nil {
		c.l2.set(ctx, key, blob, ttl)
	}
	if c.l3 != nil {
		if err := c.l3.set(key, blob); err != nil {
			return err
		}
	}
	return nil
}

// Del removes key from every enabled level.
func (c *Cache) Del(ctx context.Context, key string) {
	c.l1.del(key)
	if c.l2 != nil {
		c.l2.del(ctx, key)
	}
	if c.l3 != nil {
		c.l3.del(key)
	}
}

// GetOrBuild returns the cached value for key, or calls build exactly
// once per key among concurrent callers (single-flight), storing and
// returning its result.
func (c *Cache) GetOrBuild(ctx context.Context, key string, ttl time.Duration, build func() ([]byte, error)) ([]byte, error) {
	if v, err := c.Get(ctx, key); err == nil {
		return v, nil
	}

	v, err, _ := c.sf.Do(key, func() (any, error) {
		if v, err := c.Get(ctx, key); err == nil {
			return v, nil
		}

		b, err := build()
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, b, ttl); err != nil {
			return nil, err
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Close releases resources held by L2/L3 (the redis client, the L3
// directory watcher), per the shutdown sequence's "close cache levels"
// step.
func (c *Cache) Close() error {
	var err error
	if c.l2 != nil {
		if e := c.l2.close(); e != nil {
			err = e
		}
	}
	if c.l3 != nil {
		if e := c.l3.close(); e != nil {
			err = e
		}
	}
	return err
}

// Health reports "ok", "degraded" or "down" for each enabled level.
func (c *Cache) Health() map[string]string {
	h := map[string]string{"l1": "ok"}
	if c.l2 != nil {
		h["l2"] = c.l2.health()
	}
	if c.l3 != nil {
		h["l3"] = c.l3.health()
	}
	return h
}

// Stats returns the hit/miss/byte counters for every enabled level.
func (c *Cache) Stats() map[string]LevelStats {
	s := map[string]LevelStats{"l1": c.l1.stats.snapshot()}
	if c.l2 != nil {
		s["l2"] = c.l2.stats.snapshot()
	}
	if c.l3 != nil {
		s["l3"] = c.l3.stats.snapshot()
	}
	return s
}

// LevelStats is one level's hit/miss/byte counters and derived ratio.
type LevelStats struct {
	Hits   int64
	Misses int64
	Bytes  int64
}

// HitRatio returns Hits/(Hits+Misses), or 0 when there have been no
// lookups yet.
func (s LevelStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
	bytes  atomic.Int64
}

func (c *counters) recordHit(n int) {
	c.hits.Add(1)
	c.bytes.Add(int64(n))
}

func (c *counters) recordMiss() { c.misses.Add(1) }

func (c *counters) snapshot() LevelStats {
	return LevelStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Bytes:  c.bytes.Load(),
	}
}
