package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/domain/mocks"
)

type recordingSink struct {
	mu     sync.Mutex
	events []domain.DomainEvent
}

func (s *recordingSink) Deliver(e domain.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

type failingTracker struct{}

func (failingTracker) Advance(context.Context, string, int64) (bool, error) {
	return false, errors.New("redis down")
}

func streamEvent(msgID, scope string, entity domain.EntityType, seq int64) domain.DomainEvent {
	return domain.DomainEvent{ID: "evt-" + msgID, Entity: entity, ScopeID: scope, Sequence: seq, StreamMessageID: msgID}
}

func TestEventFanoutUseCase_ProcessBatch(t *testing.T) {
	t.Run("Successful Processing", func(t *testing.T) {
		stream := &mocks.MockEventStreamReader{ReadBatchResult: []domain.DomainEvent{
			streamEvent("m1", "r-1", domain.EntityCategory, 1),
			streamEvent("m2", "r-1", domain.EntityMenuItem, 2),
		}}
		sink := &recordingSink{}
		uc := NewEventFanoutUseCase(stream, NewMemorySequenceTracker(), sink, testLogger(), nil, "group", "consumer")

		count, err := uc.ProcessBatch(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Len(t, sink.events, 2)
		assert.Equal(t, []string{"m1", "m2"}, stream.AckedMessageIDs)
	})

	t.Run("Duplicates And Out Of Order Events Are Dropped But Acked", func(t *testing.T) {
		stream := &mocks.MockEventStreamReader{ReadBatchResult: []domain.DomainEvent{
			streamEvent("m1", "r-1", domain.EntityMenuItem, 5),
			streamEvent("m2", "r-1", domain.EntityMenuItem, 5),
			streamEvent("m3", "r-1", domain.EntityMenuItem, 4),
			streamEvent("m4", "r-2", domain.EntityMenuItem, 1),
		}}
		sink := &recordingSink{}
		uc := NewEventFanoutUseCase(stream, NewMemorySequenceTracker(), sink, testLogger(), nil, "group", "consumer")

		count, err := uc.ProcessBatch(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		require.Len(t, sink.events, 2)
		assert.Equal(t, "m1", sink.events[0].StreamMessageID)
		assert.Equal(t, "m4", sink.events[1].StreamMessageID)
		assert.Len(t, stream.AckedMessageIDs, 4)
	})

	t.Run("Menu And Order Events Share The Scope Sequence", func(t *testing.T) {
		stream := &mocks.MockEventStreamReader{ReadBatchResult: []domain.DomainEvent{
			streamEvent("m1", "r-1", domain.EntityOrder, 1),
			streamEvent("m2", "r-1", domain.EntityMenuItem, 2),
			streamEvent("m3", "r-1", domain.EntityOrder, 2),
		}}
		sink := &recordingSink{}
		uc := NewEventFanoutUseCase(stream, NewMemorySequenceTracker(), sink, testLogger(), nil, "group", "consumer")

		count, err := uc.ProcessBatch(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 2, count)
		require.Len(t, sink.events, 2)
		assert.Equal(t, domain.EntityOrder, sink.events[0].Entity)
		assert.Equal(t, domain.EntityMenuItem, sink.events[1].Entity)
	})

	t.Run("Replayed Event Behind A Later Write Is Delivered Once", func(t *testing.T) {
		tracker := NewMemorySequenceTracker()
		sink := &recordingSink{}

		live := &mocks.MockEventStreamReader{ReadBatchResult: []domain.DomainEvent{
			streamEvent("m1", "r-1", domain.EntityMenuItem, 4),
			streamEvent("m2", "r-1", domain.EntityMenuItem, 6),
		}}
		count, err := NewEventFanoutUseCase(live, tracker, sink, testLogger(), nil, "group", "consumer").ProcessBatch(context.Background())
		require.NoError(t, err)
		require.Equal(t, 2, count)

		replayed := &mocks.MockEventStreamReader{ReadBatchResult: []domain.DomainEvent{
			streamEvent("m3", "r-1", domain.EntityMenuItem, 5),
			streamEvent("m4", "r-1", domain.EntityMenuItem, 5),
			streamEvent("m5", "r-1", domain.EntityMenuItem, 4),
		}}
		count, err = NewEventFanoutUseCase(replayed, tracker, sink, testLogger(), nil, "group", "consumer").ProcessBatch(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, count)
		require.Len(t, sink.events, 3)
		assert.Equal(t, "m3", sink.events[2].StreamMessageID)
		assert.Len(t, replayed.AckedMessageIDs, 3)
	})

	t.Run("Tracker Failure Still Delivers", func(t *testing.T) {
		stream := &mocks.MockEventStreamReader{ReadBatchResult: []domain.DomainEvent{streamEvent("m1", "r-1", domain.EntityMenuItem, 1)}}
		sink := &recordingSink{}
		uc := NewEventFanoutUseCase(stream, failingTracker{}, sink, testLogger(), nil, "group", "consumer")

		count, err := uc.ProcessBatch(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Stream Read Error", func(t *testing.T) {
		stream := &mocks.MockEventStreamReader{ReadErr: errors.New("redis connection failed")}
		uc := NewEventFanoutUseCase(stream, NewMemorySequenceTracker(), &recordingSink{}, testLogger(), nil, "group", "consumer")

		count, err := uc.ProcessBatch(context.Background())

		assert.Error(t, err)
		assert.Zero(t, count)
	})

	t.Run("No Events To Process", func(t *testing.T) {
		stream := &mocks.MockEventStreamReader{}
		sink := &recordingSink{}
		uc := NewEventFanoutUseCase(stream, NewMemorySequenceTracker(), sink, testLogger(), nil, "group", "consumer")

		count, err := uc.ProcessBatch(context.Background())

		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Empty(t, stream.AckedMessageIDs)
	})

	t.Run("Ack Failure Is Reported", func(t *testing.T) {
		stream := &mocks.MockEventStreamReader{
			ReadBatchResult: []domain.DomainEvent{streamEvent("m1", "r-1", domain.EntityMenuItem, 1)},
			AckErr:          errors.New("NOGROUP"),
		}
		uc := NewEventFanoutUseCase(stream, NewMemorySequenceTracker(), &recordingSink{}, testLogger(), nil, "group", "consumer")

		count, err := uc.ProcessBatch(context.Background())

		assert.Error(t, err)
		assert.Equal(t, 1, count)
	})
}
