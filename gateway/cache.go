package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const cacheKeyPrefix = "gateway:upstream:"

var errCacheDisabled = errors.New("cache disabled")

// CachedResponse is what is stored in Redis for one upstream response.
type CachedResponse struct {
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
	CachedAt    int64  `json:"cached_at"`
}

// responseCache stores successful upstream GET responses. A nil client
// disables it.
type responseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newResponseCache(client *redis.Client, ttl time.Duration) *responseCache {
	return &responseCache{client: client, ttl: ttl}
}

func (rc *responseCache) enabled() bool {
	return rc != nil && rc.client != nil
}

// getCacheKey hashes the method and request URI so query strings get their
// own entries.
func getCacheKey(method, requestURI string) string {
	hash := sha256.Sum256([]byte(method + " " + requestURI))
	return cacheKeyPrefix + hex.EncodeToString(hash[:])
}

// shortKey trims a cache key for logs.
func shortKey(key string) string {
	return key[len(cacheKeyPrefix):][:16]
}

func (rc *responseCache) get(ctx context.Context, key string) (*CachedResponse, error) {
	if !rc.enabled() {
		return nil, errCacheDisabled
	}

	val, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var cached CachedResponse
	if err := json.Unmarshal(val, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (rc *responseCache) store(ctx context.Context, key, contentType string, body []byte) {
	if !rc.enabled() {
		return
	}

	data, err := json.Marshal(CachedResponse{
		Body:        body,
		ContentType: contentType,
		CachedAt:    time.Now().Unix(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal cache entry")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rc.client.Set(ctx, key, data, rc.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", shortKey(key)).Msg("failed to store in cache")
	}
}

func (rc *responseCache) close() {
	if !rc.enabled() {
		return
	}
	if err := rc.client.Close(); err != nil {
		log.Warn().Err(err).Msg("closing redis client")
	}
}
