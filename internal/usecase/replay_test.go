package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain/mocks"
)

func TestReplayJournalUseCase_Run(t *testing.T) {
	t.Run("Replays In Order And Truncates", func(t *testing.T) {
		events := testEvents(t, 3)
		journal := &mocks.MockJournal{Events: events}
		broker := &mocks.MockEventBroker{}
		uc := NewReplayJournalUseCase(journal, NewEventPublisher(broker, nil, nil, fastRetry, testLogger(), nil), testLogger())

		n, err := uc.Run(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.True(t, journal.Truncated)
		published := broker.Events()
		require.Len(t, published, 3)
		for i := range events {
			assert.Equal(t, events[i].ID, published[i].ID)
		}
	})

	t.Run("Failure Keeps The Journal", func(t *testing.T) {
		journal := &mocks.MockJournal{Events: testEvents(t, 2)}
		broker := &mocks.MockEventBroker{PublishErrs: []error{nil}, PublishErr: errors.New("still down")}
		uc := NewReplayJournalUseCase(journal, NewEventPublisher(broker, nil, nil, fastRetry, testLogger(), nil), testLogger())

		n, err := uc.Run(context.Background())

		assert.Error(t, err)
		assert.Equal(t, 1, n)
		assert.False(t, journal.Truncated)
		assert.Len(t, journal.Events, 2)
	})
}
