package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/V4T54L/foodhub/internal/domain"
)

// Config sizes the in-process cache.
type Config struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// DefaultConfig returns a Config suitable for a single service instance.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// Validate checks that every sizing parameter is usable.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("cache capacity must be greater than 0")
	case c.NumShards <= 0:
		return fmt.Errorf("cache shard count must be greater than 0")
	case c.TTL <= 0:
		return fmt.Errorf("cache TTL must be greater than 0")
	case c.EvictionPercentage < 1 || c.EvictionPercentage > 100:
		return fmt.Errorf("cache eviction percentage must be between 1 and 100")
	}
	return nil
}

// CacheStore is a process-local domain.CacheStore backed by sturdyc. It is
// only coherent for a single process, so it suits development and
// single-instance deployments.
//
// The mutex orders Invalidate against SetIfGeneration; sturdyc itself is
// safe for concurrent use. Entries live at most Config.TTL; shorter TTLs are
// enforced by the envelope's expiresAt.
//
// Generations come from one store-wide counter. Once more than Capacity keys
// carry a generation, entries of keys no longer cached are dropped and floor
// is raised to the highest generation dropped, so a dropped key reports a
// generation at least as high as the one it had and an older reservation on
// it can never match again.
type CacheStore struct {
	mu             sync.Mutex
	client         *sturdyc.Client[[]byte]
	generations    map[domain.CacheKey]int64
	clock          int64
	floor          int64
	maxGenerations int
}

// NewCacheStore creates an in-process cache store.
func NewCacheStore(cfg Config) (*CacheStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &CacheStore{
		client:         sturdyc.New[[]byte](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
		generations:    make(map[domain.CacheKey]int64),
		maxGenerations: cfg.Capacity,
	}, nil
}

func (s *CacheStore) Get(ctx context.Context, key domain.CacheKey) ([]byte, error) {
	v, ok := s.client.Get(string(key))
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return clone(v), nil
}

func (s *CacheStore) Invalidate(ctx context.Context, keys ...domain.CacheKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.client.Delete(string(k))
		s.clock++
		s.generations[k] = s.clock
	}
	if len(s.generations) > s.maxGenerations {
		s.prune()
	}
	return nil
}

// prune must be called with mu held.
func (s *CacheStore) prune() {
	for k, gen := range s.generations {
		if _, cached := s.client.Get(string(k)); cached {
			continue
		}
		delete(s.generations, k)
		s.floor = max(s.floor, gen)
	}
}

// generation must be called with mu held.
func (s *CacheStore) generation(key domain.CacheKey) int64 {
	if gen, ok := s.generations[key]; ok {
		return gen
	}
	return s.floor
}

func (s *CacheStore) Generation(ctx context.Context, key domain.CacheKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation(key), nil
}

func (s *CacheStore) SetIfGeneration(ctx context.Context, key domain.CacheKey, value []byte, ttl time.Duration, gen int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation(key) != gen {
		return false, nil
	}
	s.client.Set(string(key), clone(value))
	return true, nil
}

// Size returns the number of cached entries.
func (s *CacheStore) Size() int {
	return s.client.Size()
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
