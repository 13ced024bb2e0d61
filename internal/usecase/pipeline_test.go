package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
)

func TestMutationPipeline_Execute(t *testing.T) {
	spec := domain.CreateMenuItem{ID: "item-1", RestaurantID: "r-1", Input: domain.MenuItemInput{CategoryID: "cat-1", Name: "Pad Thai", Price: 12.99}}

	t.Run("Committed Mutation Invalidates And Publishes", func(t *testing.T) {
		f := newFixture(t)
		f.store.Commit = menuItemCommit("r-1", "item-1", 1)
		f.cache.Values["menu:r-1"] = []byte(`{}`)

		res, err := f.pipeline.Execute(context.Background(), spec)

		require.NoError(t, err)
		assert.Equal(t, domain.StateDone, res.State)
		assert.Equal(t, domain.OutcomeOK, res.CacheOutcome)
		assert.Equal(t, domain.OutcomeOK, res.PublishOutcome)
		assert.False(t, res.Degraded())
		assert.Contains(t, res.Keys, domain.CacheKey("menu:r-1"))
		assert.False(t, f.cache.Has("menu:r-1"))

		events := f.broker.Events()
		require.Len(t, events, 1)
		assert.Equal(t, domain.EventCreated, events[0].Type)
		assert.Equal(t, "r-1", events[0].ScopeID)
		assert.Equal(t, "item-1", events[0].EntityID)
		assert.Equal(t, int64(1), events[0].Sequence)
		assert.Equal(t, domain.TopicEvents, events[0].Topic())
	})

	t.Run("Store Failure Leaves No Side Effects", func(t *testing.T) {
		f := newFixture(t)
		f.store.ApplyErr = domain.NewNotFound(domain.EntityCategory, "cat-1")

		res, err := f.pipeline.Execute(context.Background(), spec)

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		assert.Equal(t, domain.StateStoreFailed, res.State)
		assert.Equal(t, domain.OutcomeSkipped, res.CacheOutcome)
		assert.Equal(t, domain.OutcomeSkipped, res.PublishOutcome)
		assert.Empty(t, f.cache.Invalidated)
		assert.Zero(t, f.broker.Calls)
		assert.Empty(t, f.journal.Events)
	})

	t.Run("Unclassified Store Error Becomes Unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.store.ApplyErr = errors.New("connection reset by peer")

		_, err := f.pipeline.Execute(context.Background(), spec)

		var serr *domain.StoreError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, domain.StoreUnavailable, serr.Kind)
		assert.Equal(t, domain.EntityMenuItem, serr.Entity)
	})

	t.Run("Cache Failure Degrades But Still Publishes", func(t *testing.T) {
		f := newFixture(t)
		f.store.Commit = menuItemCommit("r-1", "item-1", 1)
		f.cache.InvalidateErr = errors.New("redis: connection refused")

		res, err := f.pipeline.Execute(context.Background(), spec)

		require.NoError(t, err)
		assert.Equal(t, domain.StateDegraded, res.State)
		assert.Equal(t, domain.OutcomeDegraded, res.CacheOutcome)
		assert.Equal(t, domain.OutcomeOK, res.PublishOutcome)
		assert.ErrorIs(t, res.CacheErr, domain.ErrUnavailable)
		assert.Len(t, f.broker.Events(), 1)
		assert.Equal(t, "item-1", res.Entity.(domain.MenuItem).ID)
	})

	t.Run("Publish Failure Degrades And Journals", func(t *testing.T) {
		f := newFixture(t)
		f.store.Commit = menuItemCommit("r-1", "item-1", 1)
		f.broker.PublishErr = errors.New("broker down")

		res, err := f.pipeline.Execute(context.Background(), spec)

		require.NoError(t, err)
		assert.Equal(t, domain.StateDegraded, res.State)
		assert.Equal(t, domain.OutcomeOK, res.CacheOutcome)
		assert.Equal(t, domain.OutcomeDegraded, res.PublishOutcome)
		assert.Equal(t, fastRetry.MaxAttempts, f.broker.Calls)
		require.Len(t, f.journal.Events, 1)
		assert.Equal(t, "item-1", f.journal.Events[0].EntityID)
		assert.NotEmpty(t, f.cache.Invalidated)
	})

	t.Run("Caller Cancellation After Commit Does Not Abort Side Effects", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		commit := menuItemCommit("r-1", "item-1", 1)
		f.store.ApplyFunc = func(context.Context, domain.MutationSpec) (domain.Commit, error) {
			cancel()
			return commit, nil
		}

		res, err := f.pipeline.Execute(ctx, spec)

		require.NoError(t, err)
		assert.Equal(t, domain.StateDone, res.State)
		assert.Len(t, f.broker.Events(), 1)
		assert.Contains(t, f.cache.Invalidated, domain.CacheKey("menu:r-1"))
	})

	t.Run("Commit Without Changes Is Degraded", func(t *testing.T) {
		f := newFixture(t)
		f.store.Commit = domain.Commit{Entity: domain.MenuItem{ID: "item-1"}, Scopes: []domain.AffectedScope{domain.RestaurantScope("r-1")}}

		res, err := f.pipeline.Execute(context.Background(), spec)

		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeDegraded, res.PublishOutcome)
		assert.ErrorIs(t, res.PublishErr, domain.ErrInvalidEvent)
		assert.Zero(t, f.broker.Calls)
	})
}

func TestMutationPipeline_ReorderPublishesOrderedEvents(t *testing.T) {
	f := newFixture(t)
	var changes []domain.Change
	for i, id := range []string{"cat-a", "cat-b", "cat-c"} {
		changes = append(changes, domain.Change{
			Type:     domain.EventUpdated,
			Entity:   domain.EntityCategory,
			EntityID: id,
			ScopeID:  "r-1",
			Sequence: int64(10 + i),
			Payload:  domain.Category{ID: id, RestaurantID: "r-1", SortOrder: 2 - i},
		})
	}
	f.store.Commit = domain.Commit{
		Entity:  []domain.Category{},
		Scopes:  []domain.AffectedScope{domain.RestaurantScope("r-1")},
		Changes: changes,
	}

	res, err := f.pipeline.Execute(context.Background(), domain.ReorderCategories{
		RestaurantID: "r-1",
		Positions:    []domain.CategoryPosition{{ID: "cat-a", SortOrder: 2}, {ID: "cat-b", SortOrder: 1}, {ID: "cat-c", SortOrder: 0}},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, res.State)
	require.Len(t, f.store.Applied, 1)

	events := f.broker.Events()
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Sequence, events[i-1].Sequence)
	}
	assert.Equal(t, []string{"cat-a", "cat-b", "cat-c"}, []string{events[0].EntityID, events[1].EntityID, events[2].EntityID})
}

func TestMutationPipeline_OrderStatusSequenceFollowsCreation(t *testing.T) {
	f := newFixture(t)
	order := domain.Order{ID: "o-1", RestaurantID: "r-1", Status: domain.OrderPending}
	scopes := []domain.AffectedScope{domain.OrderScope("o-1"), domain.RestaurantScope("r-1"), domain.OrderBookScope()}

	f.store.Commit = domain.Commit{Entity: order, Scopes: scopes, Changes: []domain.Change{{
		Type: domain.EventCreated, Entity: domain.EntityOrder, EntityID: "o-1", ScopeID: "r-1", Sequence: 1, Payload: order,
	}}}
	_, err := f.pipeline.Execute(context.Background(), domain.CreateOrder{ID: "o-1"})
	require.NoError(t, err)

	change := domain.StatusChange{OrderID: "o-1", RestaurantID: "r-1", PreviousStatus: domain.OrderPending, Status: domain.OrderConfirmed}
	order.Status = domain.OrderConfirmed
	f.store.Commit = domain.Commit{Entity: order, Scopes: scopes, Changes: []domain.Change{{
		Type: domain.EventStatusUpdated, Entity: domain.EntityOrder, EntityID: "o-1", ScopeID: "r-1", Sequence: 2, Payload: change,
	}}}
	res, err := f.pipeline.Execute(context.Background(), domain.UpdateOrderStatus{ID: "o-1", Status: domain.OrderConfirmed})
	require.NoError(t, err)

	events := f.broker.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStatusUpdated, events[1].Type)
	assert.Equal(t, "o-1", events[1].EntityID)
	assert.Equal(t, int64(2), events[1].Sequence)
	assert.Greater(t, events[1].Sequence, events[0].Sequence)
	assert.Equal(t, domain.TopicEvents, events[1].Topic())
	assert.Equal(t, domain.EntityOrder, events[1].Entity)
	assert.ElementsMatch(t, []domain.CacheKey{"order:o-1", "orders:all", "orders:restaurant:r-1"}, res.Keys)
}
