package redis

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testEvent(t *testing.T, id string, entity domain.EntityType, scope string, seq int64) domain.DomainEvent {
	t.Helper()
	var payload any
	switch entity {
	case domain.EntityOrder:
		payload = domain.Order{ID: id, RestaurantID: scope, Status: domain.OrderPending}
	default:
		payload = domain.MenuItem{ID: id, RestaurantID: scope, Name: "Pad Thai", Price: 12.99}
	}
	e, err := domain.NewEvent("evt-"+id, domain.EventCreated, entity, id, scope, seq, payload, time.Now())
	require.NoError(t, err)
	return e
}
