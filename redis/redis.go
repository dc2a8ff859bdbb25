package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// InitRedis connects to addr. It returns nil when redis is not reachable so the
// server can run without a cache.
func InitRedis(ctx context.Context, addr string, log zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("Redis not available. Running without Redis.")
		_ = client.Close()
		return nil
	}

	log.Info().Str("address", addr).Msg("Redis connected successfully.")
	return client
}
