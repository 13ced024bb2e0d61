package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/domain/mocks"
)

func TestCacheCoordinator_KeysFor(t *testing.T) {
	c := NewCacheCoordinator(mocks.NewMockCacheStore(), CacheConfig{}, testLogger(), nil)

	tests := []struct {
		name   string
		entity domain.EntityType
		scopes []domain.AffectedScope
		want   []domain.CacheKey
	}{
		{
			name:   "menu item touches every view of its restaurant",
			entity: domain.EntityMenuItem,
			scopes: []domain.AffectedScope{domain.RestaurantScope("r-1")},
			want:   []domain.CacheKey{"categories:r-1", "menu:r-1", "restaurants:all"},
		},
		{
			name:   "restaurant with directory scope is deduplicated",
			entity: domain.EntityRestaurant,
			scopes: []domain.AffectedScope{domain.DirectoryScope(), domain.RestaurantScope("r-1"), domain.RestaurantScope("r-1")},
			want:   []domain.CacheKey{"categories:r-1", "menu:r-1", "restaurants:all"},
		},
		{
			name:   "order scopes never touch the menu",
			entity: domain.EntityOrder,
			scopes: []domain.AffectedScope{domain.OrderScope("o-1"), domain.RestaurantScope("r-1"), domain.OrderBookScope()},
			want:   []domain.CacheKey{"order:o-1", "orders:all", "orders:restaurant:r-1"},
		},
		{
			name:   "scopes without id are skipped",
			entity: domain.EntityCategory,
			scopes: []domain.AffectedScope{{Kind: domain.ScopeRestaurant}},
			want:   []domain.CacheKey{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.KeysFor(tt.entity, tt.scopes)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, c.KeysFor(tt.entity, tt.scopes))
		})
	}

	t.Run("prefix applies to every key", func(t *testing.T) {
		pc := NewCacheCoordinator(mocks.NewMockCacheStore(), CacheConfig{KeyPrefix: "fh:"}, testLogger(), nil)
		got := pc.KeysFor(domain.EntityCategory, []domain.AffectedScope{domain.RestaurantScope("r-1")})
		assert.Equal(t, []domain.CacheKey{"fh:categories:r-1", "fh:menu:r-1", "fh:restaurants:all"}, got)
	})
}

func TestCacheCoordinator_InvalidateAbsentKeyIsNoop(t *testing.T) {
	store := mocks.NewMockCacheStore()
	c := NewCacheCoordinator(store, CacheConfig{}, testLogger(), nil)

	require.NoError(t, c.Invalidate(context.Background(), []domain.CacheKey{"menu:missing"}))
	require.NoError(t, c.Invalidate(context.Background(), []domain.CacheKey{"menu:missing"}))
	require.NoError(t, c.Invalidate(context.Background(), nil))
	assert.Equal(t, int64(2), store.Generations["menu:missing"])
}

func TestCacheCoordinator_InvalidateWrapsBackendErrors(t *testing.T) {
	store := mocks.NewMockCacheStore()
	store.InvalidateErr = context.DeadlineExceeded
	c := NewCacheCoordinator(store, CacheConfig{}, testLogger(), nil)

	err := c.Invalidate(context.Background(), []domain.CacheKey{"menu:r-1"})

	var cerr *domain.CacheError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, domain.CacheTimeout, cerr.Kind)
	assert.Equal(t, "invalidate", cerr.Op)
}

func TestCacheCoordinator_LookupAndPopulate(t *testing.T) {
	t.Run("Populated Value Is Returned", func(t *testing.T) {
		store := mocks.NewMockCacheStore()
		c := NewCacheCoordinator(store, CacheConfig{TTL: time.Minute}, testLogger(), nil)

		gen, err := c.Reserve(context.Background(), "menu:r-1")
		require.NoError(t, err)
		require.NoError(t, c.Populate(context.Background(), "menu:r-1", map[string]string{"id": "r-1"}, 0, gen))

		v, err := c.Lookup(context.Background(), "menu:r-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"r-1"}`, string(v.Data))
		assert.Equal(t, time.Minute, v.ExpiresAt.Sub(v.StoredAt))
	})

	t.Run("Expired Envelope Is A Miss", func(t *testing.T) {
		store := mocks.NewMockCacheStore()
		c := NewCacheCoordinator(store, CacheConfig{TTL: time.Minute}, testLogger(), nil)
		stale, _ := json.Marshal(domain.CachedValue{
			StoredAt:  time.Now().Add(-2 * time.Hour),
			ExpiresAt: time.Now().Add(-time.Hour),
			Data:      json.RawMessage(`{}`),
		})
		store.Values["menu:r-1"] = stale

		_, err := c.Lookup(context.Background(), "menu:r-1")
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("Populate After Invalidation Is Refused", func(t *testing.T) {
		store := mocks.NewMockCacheStore()
		c := NewCacheCoordinator(store, CacheConfig{}, testLogger(), nil)

		gen, err := c.Reserve(context.Background(), "menu:r-1")
		require.NoError(t, err)
		require.NoError(t, c.Invalidate(context.Background(), []domain.CacheKey{"menu:r-1"}))
		require.NoError(t, c.Populate(context.Background(), "menu:r-1", "old", 0, gen))

		assert.False(t, store.Has("menu:r-1"))
	})

	t.Run("Backend Error Is A CacheError", func(t *testing.T) {
		store := mocks.NewMockCacheStore()
		store.GetErr = errors.New("dial tcp: connection refused")
		c := NewCacheCoordinator(store, CacheConfig{}, testLogger(), nil)

		_, err := c.Lookup(context.Background(), "menu:r-1")
		var cerr *domain.CacheError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, domain.CacheUnavailable, cerr.Kind)
	})
}
