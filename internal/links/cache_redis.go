package links

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes separate the two namespaces over the same short code.
const (
	urlKeyPrefix   = "url:"
	statsKeyPrefix = "stats:"
)

type redisCache struct {
	rdb      *redis.Client
	urlTTL   time.Duration
	statsTTL time.Duration
}

// RedisCacheConfig holds configuration for the Redis cache. Zero TTLs mean
// entries never expire, which the Resolver is correct under; non-zero TTLs
// only bound memory and staleness windows.
type RedisCacheConfig struct {
	URLTTL   time.Duration
	StatsTTL time.Duration
}

// NewRedisCache returns a Cache backed by Redis.
func NewRedisCache(rdb *redis.Client, config *RedisCacheConfig) Cache {
	if config == nil {
		config = &RedisCacheConfig{}
	}
	return &redisCache{
		rdb:      rdb,
		urlTTL:   config.URLTTL,
		statsTTL: config.StatsTTL,
	}
}

func (c *redisCache) GetURL(ctx context.Context, code string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, urlKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get url: %w", err)
	}
	return val, true, nil
}

func (c *redisCache) SetURL(ctx context.Context, code, url string) error {
	if err := c.rdb.Set(ctx, urlKeyPrefix+code, url, c.urlTTL).Err(); err != nil {
		return fmt.Errorf("cache set url: %w", err)
	}
	return nil
}

func (c *redisCache) DeleteURL(ctx context.Context, code string) error {
	if err := c.rdb.Del(ctx, urlKeyPrefix+code).Err(); err != nil {
		return fmt.Errorf("cache delete url: %w", err)
	}
	return nil
}

func (c *redisCache) GetStats(ctx context.Context, code string) (Stats, bool, error) {
	raw, err := c.rdb.Get(ctx, statsKeyPrefix+code).Bytes()
	if errors.Is(err, redis.Nil) {
		return Stats{}, false, nil
	}
	if err != nil {
		return Stats{}, false, fmt.Errorf("cache get stats: %w", err)
	}

	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		// A corrupt snapshot is as good as a miss; the store copy wins.
		return Stats{}, false, fmt.Errorf("cache decode stats: %w", err)
	}
	return stats, true, nil
}

func (c *redisCache) SetStats(ctx context.Context, code string, stats Stats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("cache encode stats: %w", err)
	}
	if err := c.rdb.Set(ctx, statsKeyPrefix+code, raw, c.statsTTL).Err(); err != nil {
		return fmt.Errorf("cache set stats: %w", err)
	}
	return nil
}

func (c *redisCache) DeleteStats(ctx context.Context, code string) error {
	if err := c.rdb.Del(ctx, statsKeyPrefix+code).Err(); err != nil {
		return fmt.Errorf("cache delete stats: %w", err)
	}
	return nil
}
