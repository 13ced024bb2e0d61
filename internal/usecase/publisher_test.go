package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/domain/mocks"
)

func testEvents(t *testing.T, n int) []domain.DomainEvent {
	t.Helper()
	events := make([]domain.DomainEvent, 0, n)
	for i := 0; i < n; i++ {
		c := domain.Category{ID: "cat", RestaurantID: "r-1", SortOrder: i}
		e, err := domain.NewEvent("evt-"+string(rune('a'+i)), domain.EventUpdated, domain.EntityCategory, "cat", "r-1", int64(i+1), c, time.Now())
		require.NoError(t, err)
		events = append(events, e)
	}
	return events
}

type stubRedactor struct{}

func (stubRedactor) Redact(e *domain.DomainEvent) error {
	e.Payload = []byte(`{"redacted":true}`)
	return nil
}

func TestEventPublisher_PublishBatch(t *testing.T) {
	t.Run("Transient Failure Is Retried", func(t *testing.T) {
		broker := &mocks.MockEventBroker{PublishErrs: []error{errors.New("connection refused"), nil}}
		p := NewEventPublisher(broker, &mocks.MockJournal{}, nil, fastRetry, testLogger(), nil)

		n, err := p.PublishBatch(context.Background(), testEvents(t, 2))

		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.Equal(t, 3, broker.Calls)
		assert.Len(t, broker.Events(), 2)
	})

	t.Run("Rejection Is Not Retried", func(t *testing.T) {
		broker := &mocks.MockEventBroker{PublishErr: &domain.PublishError{Kind: domain.PublishRejected, Err: errors.New("message too large")}}
		journal := &mocks.MockJournal{}
		p := NewEventPublisher(broker, journal, nil, fastRetry, testLogger(), nil)

		n, err := p.PublishBatch(context.Background(), testEvents(t, 1))

		assert.Zero(t, n)
		assert.ErrorIs(t, err, domain.ErrRejected)
		assert.Equal(t, 1, broker.Calls)
		assert.Len(t, journal.Events, 1)
	})

	t.Run("Exhausted Retries Stop The Batch And Journal The Rest", func(t *testing.T) {
		broker := &mocks.MockEventBroker{PublishErrs: []error{nil, errors.New("down"), errors.New("down"), errors.New("down")}}
		journal := &mocks.MockJournal{}
		p := NewEventPublisher(broker, journal, nil, fastRetry, testLogger(), nil)
		events := testEvents(t, 3)

		n, err := p.PublishBatch(context.Background(), events)

		var perr *domain.PublishError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, domain.PublishUnavailable, perr.Kind)
		assert.Equal(t, fastRetry.MaxAttempts, perr.Attempts)
		assert.Equal(t, events[1].ID, perr.EventID)
		assert.Equal(t, 1, n)
		require.Len(t, broker.Events(), 1)
		require.Len(t, journal.Events, 2)
		assert.Equal(t, events[1].ID, journal.Events[0].ID)
		assert.Equal(t, events[2].ID, journal.Events[1].ID)
	})

	t.Run("Caller Cancellation Stops Retrying", func(t *testing.T) {
		broker := &mocks.MockEventBroker{PublishErr: errors.New("down")}
		slow := fastRetry
		slow.MaxAttempts = 10
		slow.BaseDelay = time.Second
		slow.MaxDelay = time.Second
		p := NewEventPublisher(broker, nil, nil, slow, testLogger(), nil)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := p.Publish(ctx, testEvents(t, 1)[0])

		assert.ErrorIs(t, err, domain.ErrTimeout)
		assert.Less(t, broker.Calls, 10)
	})

	t.Run("Payload Is Redacted Before Publish", func(t *testing.T) {
		broker := &mocks.MockEventBroker{}
		p := NewEventPublisher(broker, nil, stubRedactor{}, fastRetry, testLogger(), nil)

		_, err := p.PublishBatch(context.Background(), testEvents(t, 1))

		require.NoError(t, err)
		assert.JSONEq(t, `{"redacted":true}`, string(broker.Events()[0].Payload))
	})
}

func TestEventPublisher_BackoffIsBounded(t *testing.T) {
	p := NewEventPublisher(&mocks.MockEventBroker{}, nil, nil, RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    80 * time.Millisecond,
	}, testLogger(), nil)

	for attempt := 1; attempt <= 10; attempt++ {
		for i := 0; i < 50; i++ {
			d := p.backoff(attempt)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.Less(t, d, 80*time.Millisecond)
			if attempt == 1 {
				assert.Less(t, d, 10*time.Millisecond)
			}
		}
	}
}
