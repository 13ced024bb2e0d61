package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/foodhub/internal/domain"
)

const generationTTL = 24 * time.Hour

// setIfGenerationScript writes KEYS[1] only while the generation counter in
// KEYS[2] still equals ARGV[2]. A missing counter reads as generation 0.
var setIfGenerationScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2])
if not gen then gen = '0' end
if gen ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// CacheStore implements domain.CacheStore on Redis strings. Each key has a
// companion "<key>:gen" counter that Invalidate bumps.
type CacheStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCacheStore creates a Redis-backed cache store.
func NewCacheStore(client *redis.Client, logger *slog.Logger) *CacheStore {
	return &CacheStore{client: client, logger: logger.With("component", "redis_cache")}
}

func generationKey(key domain.CacheKey) string {
	return string(key) + ":gen"
}

func (s *CacheStore) Get(ctx context.Context, key domain.CacheKey) ([]byte, error) {
	b, err := s.client.Get(ctx, string(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrCacheMiss
		}
		return nil, cacheError("get", key, err)
	}
	return b, nil
}

// Invalidate deletes the keys and bumps their generations in one MULTI/EXEC.
func (s *CacheStore) Invalidate(ctx context.Context, keys ...domain.CacheKey) error {
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = string(k)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, names...)
	for _, k := range keys {
		gk := generationKey(k)
		pipe.Incr(ctx, gk)
		pipe.PExpire(ctx, gk, generationTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return cacheError("invalidate", keys[0], fmt.Errorf("%d keys: %w", len(keys), err))
	}
	return nil
}

func (s *CacheStore) Generation(ctx context.Context, key domain.CacheKey) (int64, error) {
	gen, err := s.client.Get(ctx, generationKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, cacheError("generation", key, err)
	}
	return gen, nil
}

func (s *CacheStore) SetIfGeneration(ctx context.Context, key domain.CacheKey, value []byte, ttl time.Duration, gen int64) (bool, error) {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	stored, err := setIfGenerationScript.Run(ctx, s.client,
		[]string{string(key), generationKey(key)},
		value, gen, ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, cacheError("set", key, err)
	}
	if stored == 0 {
		s.logger.Debug("skipped populate behind a newer generation", "key", key, "generation", gen)
	}
	return stored == 1, nil
}
