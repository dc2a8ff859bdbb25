package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Cache stores JSON values in redis. A Cache without client misses on every read
// and drops every write.
type Cache struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewCache(client *redis.Client, log zerolog.Logger) *Cache {
	return &Cache{client: client, log: log}
}

// Get decodes the value at key into dest and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache value is not valid json, ignoring")
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache set failed")
		return err
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

// GetVersion returns the counter at key, 0 when missing. Cached lists put the
// version into their keys so bumping it invalidates them all.
func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if c.client == nil {
		return 0
	}
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache version increment failed")
	}
}
