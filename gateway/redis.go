package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// initRedis connects to Redis when caching is enabled. It returns nil when
// caching is off or Redis cannot be reached, which disables the cache.
func initRedis(cfg Config) *redis.Client {
	if !cfg.CacheEnabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, caching disabled")
		client.Close()
		return nil
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("redis connected")
	return client
}
