package billing

import (
	"context"
	"time"

	"github.com/geocoder89/resumeforge/internal/cache"
	"github.com/redis/go-redis/v9"
)

const DedupeTTL = 72 * time.Hour

// Deduper remembers processed event ids. Claim reports false when the id was
// already claimed. Release forgets a claim so a failed delivery can be retried.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type RedisDeduper struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = DedupeTTL
	}
	return &RedisDeduper{rdb: rdb, prefix: "resumeforge:stripe:event:", ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, eventID string) (bool, error) {
	return d.rdb.SetNX(ctx, d.prefix+eventID, time.Now().UTC().Unix(), d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, eventID string) error {
	return d.rdb.Del(ctx, d.prefix+eventID).Err()
}

type MemoryDeduper struct {
	c *cache.Cache
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = DedupeTTL
	}
	return &MemoryDeduper{c: cache.New(ttl)}
}

func (d *MemoryDeduper) Claim(_ context.Context, eventID string) (bool, error) {
	return d.c.SetIfAbsent(eventID, struct{}{}), nil
}

func (d *MemoryDeduper) Release(_ context.Context, eventID string) error {
	d.c.Delete(eventID)
	return nil
}
