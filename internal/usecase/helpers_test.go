package usecase

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/domain/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fastRetry = RetryConfig{
	MaxAttempts:    3,
	BaseDelay:      time.Millisecond,
	MaxDelay:       2 * time.Millisecond,
	AttemptTimeout: 50 * time.Millisecond,
}

type fixture struct {
	store    *mocks.MockStore
	cache    *mocks.MockCacheStore
	broker   *mocks.MockEventBroker
	journal  *mocks.MockJournal
	reader   *mocks.MockReader
	coord    *CacheCoordinator
	pipeline *MutationPipeline
	reads    *ReadPath
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   &mocks.MockStore{},
		cache:   mocks.NewMockCacheStore(),
		broker:  &mocks.MockEventBroker{},
		journal: &mocks.MockJournal{},
		reader:  &mocks.MockReader{},
	}
	logger := testLogger()
	f.coord = NewCacheCoordinator(f.cache, CacheConfig{TTL: time.Minute}, logger, nil)
	publisher := NewEventPublisher(f.broker, f.journal, nil, fastRetry, logger, nil)
	f.pipeline = NewMutationPipeline(f.store, f.coord, publisher, time.Second, logger, nil)
	f.reads = NewReadPath(f.coord, time.Second, false, logger)
	return f
}

func menuItemCommit(restaurantID, itemID string, seq int64) domain.Commit {
	item := domain.MenuItem{ID: itemID, RestaurantID: restaurantID, CategoryID: "cat-1", Name: "Pad Thai", Price: 12.99, IsAvailable: true}
	return domain.Commit{
		Entity: item,
		Scopes: []domain.AffectedScope{domain.RestaurantScope(restaurantID)},
		Changes: []domain.Change{{
			Type:     domain.EventCreated,
			Entity:   domain.EntityMenuItem,
			EntityID: itemID,
			ScopeID:  restaurantID,
			Sequence: seq,
			Payload:  item,
		}},
	}
}
