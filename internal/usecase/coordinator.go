package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/V4T54L/foodhub/internal/adapter/metrics"
	"github.com/V4T54L/foodhub/internal/domain"
)

const (
	defaultCacheTTL     = time.Hour
	defaultCacheTimeout = 500 * time.Millisecond
)

// CacheConfig configures the CacheCoordinator.
type CacheConfig struct {
	KeyPrefix string
	TTL       time.Duration
	Timeout   time.Duration
}

// CacheCoordinator owns the mapping from mutations to cache keys and every
// call the pipeline and read path make against the cache store.
type CacheCoordinator struct {
	store   domain.CacheStore
	prefix  string
	ttl     time.Duration
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics
	now     func() time.Time
}

// NewCacheCoordinator creates a CacheCoordinator. m may be nil.
func NewCacheCoordinator(store domain.CacheStore, cfg CacheConfig, logger *slog.Logger, m *metrics.PipelineMetrics) *CacheCoordinator {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCacheTimeout
	}
	return &CacheCoordinator{
		store:   store,
		prefix:  cfg.KeyPrefix,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		logger:  logger.With("component", "cache_coordinator"),
		metrics: m,
		now:     time.Now,
	}
}

func (c *CacheCoordinator) key(format string, args ...any) domain.CacheKey {
	return domain.CacheKey(c.prefix + fmt.Sprintf(format, args...))
}

// MenuKey holds the restaurant with its full menu.
func (c *CacheCoordinator) MenuKey(restaurantID string) domain.CacheKey {
	return c.key("menu:%s", restaurantID)
}

// CategoriesKey holds the category list of a restaurant.
func (c *CacheCoordinator) CategoriesKey(restaurantID string) domain.CacheKey {
	return c.key("categories:%s", restaurantID)
}

// RestaurantsKey holds every active restaurant with its menu.
func (c *CacheCoordinator) RestaurantsKey() domain.CacheKey {
	return c.key("restaurants:all")
}

func (c *CacheCoordinator) OrderKey(orderID string) domain.CacheKey {
	return c.key("order:%s", orderID)
}

func (c *CacheCoordinator) OrdersKey() domain.CacheKey {
	return c.key("orders:all")
}

// RestaurantOrdersKey holds the orders placed against one restaurant.
func (c *CacheCoordinator) RestaurantOrdersKey(restaurantID string) domain.CacheKey {
	return c.key("orders:restaurant:%s", restaurantID)
}

// KeysFor returns every key that may hold a stale view after a mutation of
// the entity family touching scopes. The result is sorted and has no
// duplicates, so equal inputs always yield equal outputs.
func (c *CacheCoordinator) KeysFor(entity domain.EntityType, scopes []domain.AffectedScope) []domain.CacheKey {
	set := make(map[domain.CacheKey]struct{})
	add := func(keys ...domain.CacheKey) {
		for _, k := range keys {
			set[k] = struct{}{}
		}
	}

	for _, s := range scopes {
		switch s.Kind {
		case domain.ScopeRestaurant:
			if s.ID == "" {
				continue
			}
			if entity == domain.EntityOrder {
				add(c.RestaurantOrdersKey(s.ID))
				continue
			}
			// The directory embeds every restaurant's menu.
			add(c.MenuKey(s.ID), c.CategoriesKey(s.ID), c.RestaurantsKey())
		case domain.ScopeRestaurantDirectory:
			add(c.RestaurantsKey())
		case domain.ScopeOrder:
			if s.ID != "" {
				add(c.OrderKey(s.ID))
			}
		case domain.ScopeOrderBook:
			add(c.OrdersKey())
		}
	}

	keys := make([]domain.CacheKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Invalidate removes keys from the cache. Keys that are already absent are
// not an error. Any failure is returned as a *domain.CacheError.
func (c *CacheCoordinator) Invalidate(ctx context.Context, keys []domain.CacheKey) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Invalidate(ctx, keys...); err != nil {
		c.metrics.InvalidationFailed()
		return asCacheError("invalidate", string(keys[0]), err)
	}
	c.logger.Debug("invalidated cache keys", "keys", keys)
	return nil
}

// Lookup returns the cached envelope for key. An expired envelope is reported
// as domain.ErrCacheMiss even if the backend still holds it.
func (c *CacheCoordinator) Lookup(ctx context.Context, key domain.CacheKey) (domain.CachedValue, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			c.metrics.CacheLookup("miss")
			return domain.CachedValue{}, domain.ErrCacheMiss
		}
		c.metrics.CacheLookup("error")
		return domain.CachedValue{}, asCacheError("get", string(key), err)
	}

	var v domain.CachedValue
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		c.metrics.CacheLookup("miss")
		return domain.CachedValue{}, domain.ErrCacheMiss
	}
	if v.Expired(c.now()) {
		c.metrics.CacheLookup("expired")
		return domain.CachedValue{}, domain.ErrCacheMiss
	}
	c.metrics.CacheLookup("hit")
	return v, nil
}

// Reserve returns the generation a later Populate of key must match.
func (c *CacheCoordinator) Reserve(ctx context.Context, key domain.CacheKey) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	gen, err := c.store.Generation(ctx, key)
	if err != nil {
		return 0, asCacheError("generation", string(key), err)
	}
	return gen, nil
}

// Populate writes value under key if the key has not been invalidated since
// gen was reserved. A ttl <= 0 uses the configured default.
func (c *CacheCoordinator) Populate(ctx context.Context, key domain.CacheKey, value any, ttl time.Duration, gen int64) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value for %s: %w", key, err)
	}
	now := c.now().UTC()
	envelope, err := json.Marshal(domain.CachedValue{
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope for %s: %w", key, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	stored, err := c.store.SetIfGeneration(ctx, key, envelope, ttl, gen)
	if err != nil {
		c.metrics.PopulateFailed()
		return asCacheError("set", string(key), err)
	}
	if !stored {
		c.logger.Debug("skipped populate of invalidated key", "key", key, "generation", gen)
	}
	return nil
}

func asCacheError(op, key string, err error) error {
	var cerr *domain.CacheError
	if errors.As(err, &cerr) {
		return cerr
	}
	kind := domain.CacheUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.CacheTimeout
	}
	return &domain.CacheError{Kind: kind, Op: op, Key: key, Err: err}
}
