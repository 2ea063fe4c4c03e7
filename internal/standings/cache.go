package standings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache holds computed tables keyed by season and division.
type Cache interface {
	Get(ctx context.Context, season, division string) ([]Row, bool, error)
	Set(ctx context.Context, season, division string, rows []Row) error
	Invalidate(ctx context.Context, season, division string) error
}

// RedisCache stores tables as JSON under "standings:<season>:<division>".
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "standings:"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) key(season, division string) string {
	return c.prefix + season + ":" + division
}

func (c *RedisCache) Get(ctx context.Context, season, division string) ([]Row, bool, error) {
	b, err := c.client.Get(ctx, c.key(season, division)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rows []Row
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, false, err
	}
	return rows, true, nil
}

func (c *RedisCache) Set(ctx context.Context, season, division string, rows []Row) error {
	b, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(season, division), b, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, season, division string) error {
	return c.client.Del(ctx, c.key(season, division)).Err()
}

// NoopCache never stores anything.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, string) ([]Row, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, string, string, []Row) error         { return nil }
func (NoopCache) Invalidate(context.Context, string, string) error         { return nil }
