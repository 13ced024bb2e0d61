package domain

import (
	"context"
	"time"
)

// Store is the system of record. Apply runs one mutation inside a single
// transaction and either commits every row it touches or none of them.
type Store interface {
	// Apply returns a *StoreError on failure; nothing was committed then.
	Apply(ctx context.Context, spec MutationSpec) (Commit, error)
}

// RestaurantReader serves the restaurant read models.
type RestaurantReader interface {
	// GetRestaurantMenu returns the restaurant with its categories and items.
	GetRestaurantMenu(ctx context.Context, id string) (*RestaurantMenu, error)

	// ListRestaurants returns every active restaurant with its menu.
	ListRestaurants(ctx context.Context) ([]RestaurantMenu, error)
}

// MenuReader serves category and item lookups.
type MenuReader interface {
	ListCategories(ctx context.Context, restaurantID string) ([]Category, error)
	GetMenuItem(ctx context.Context, id string) (*MenuItem, error)
}

// OrderReader serves order lookups.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
	ListRestaurantOrders(ctx context.Context, restaurantID string) ([]Order, error)
}

// CacheStore is the key-value backend behind the Cache Coordinator.
//
// Every key carries a generation counter that Invalidate bumps. A reader that
// observed generation g before reading the store may only populate the key
// while it is still at g, so a read racing a mutation cannot put back the
// pre-mutation view.
type CacheStore interface {
	// Get returns ErrCacheMiss when the key holds no value.
	Get(ctx context.Context, key CacheKey) ([]byte, error)

	// Invalidate removes the keys and bumps their generations. Absent keys
	// are not an error.
	Invalidate(ctx context.Context, keys ...CacheKey) error

	// Generation returns the current generation of key.
	Generation(ctx context.Context, key CacheKey) (int64, error)

	// SetIfGeneration stores value only if key is still at generation gen.
	// It reports whether the value was stored.
	SetIfGeneration(ctx context.Context, key CacheKey, value []byte, ttl time.Duration, gen int64) (bool, error)
}

// EventBroker delivers events to a durable topic keyed by scope id.
// Implementations return a *PublishError.
type EventBroker interface {
	Publish(ctx context.Context, event DomainEvent) error
	Close() error
}

// FailedEventJournal keeps events whose publish was abandoned, in order,
// until an operator replays them.
type FailedEventJournal interface {
	// Write appends an event to the local journal.
	Write(ctx context.Context, event DomainEvent) error

	// Replay reads journaled events in write order and hands each to handler.
	// It stops at the first handler error.
	Replay(ctx context.Context, handler func(event DomainEvent) error) error

	// Truncate removes journal segments that have been successfully replayed.
	Truncate(ctx context.Context) error
}

// EventStreamReader consumes published events through a consumer group.
type EventStreamReader interface {
	// ReadEvents reads a batch of new events for the consumer.
	ReadEvents(ctx context.Context, group, consumer string, count int) ([]DomainEvent, error)

	// AcknowledgeEvents marks events as processed for the group.
	AcknowledgeEvents(ctx context.Context, group string, messageIDs ...string) error
}

// SequenceTracker remembers which sequences were seen per scope: the highest
// one, plus the sequences skipped below it that have not arrived yet.
type SequenceTracker interface {
	// Advance records seq for scopeID and reports whether it was not seen
	// before, either because it is above the highest or because it fills a
	// skipped sequence.
	Advance(ctx context.Context, scopeID string, seq int64) (bool, error)
}

// StreamAdminRepository defines operator actions on the event streams.
type StreamAdminRepository interface {
	GetGroupInfo(ctx context.Context, stream string) ([]ConsumerGroupInfo, error)
	GetConsumerInfo(ctx context.Context, stream, group string) ([]ConsumerInfo, error)
	GetPendingSummary(ctx context.Context, stream, group string) (*PendingMessageSummary, error)
	GetPendingMessages(ctx context.Context, stream, group string, q PendingQuery) ([]PendingMessageDetail, error)
	ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]DomainEvent, error)
	AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error)
	TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error)
}
