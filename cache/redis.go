package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisLevel is the optional L2 cache: a distributed KV store with its
// own TTL, deferring eviction entirely to redis.
type redisLevel struct {
	client *redis.Client
	stats  counters
}

func newRedisLevel(addr string, db int) *redisLevel {
	return &redisLevel{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
	}
}

func (r *redisLevel) get(ctx context.Context, key string) ([]byte, bool) {
	blob, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		r.stats.recordMiss()
		return nil, false
	}
	r.stats.recordHit(len(blob))
	return blob, true
}

func (r *redisLevel) set(ctx context.Context, key string, blob []byte, ttl time.Duration) {
	r.client.Set(ctx, key, blob, ttl)
}

func (r *redisLevel) del(ctx context.Context, key string) {
	r.client.Del(ctx, key)
}

func (r *redisLevel) close() error {
	return r.client.Close()
}

func (r *redisLevel) health() string {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return "down"
	}
	return "ok"
}
