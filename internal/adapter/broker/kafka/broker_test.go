package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
)

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBroker_Publish(t *testing.T) {
	event, err := domain.NewEvent("evt-1", domain.EventStatusUpdated, domain.EntityOrder, "o-1", "r-1", 7,
		domain.StatusChange{OrderID: "o-1", Status: domain.OrderConfirmed}, time.Now())
	require.NoError(t, err)

	t.Run("Keys By Scope On The Events Topic", func(t *testing.T) {
		w := &fakeWriter{}
		b := newBroker(w, testLogger())

		require.NoError(t, b.Publish(context.Background(), event))

		require.Len(t, w.messages, 1)
		msg := w.messages[0]
		assert.Equal(t, domain.TopicEvents, msg.Topic)
		assert.Equal(t, "r-1", string(msg.Key))
		assert.Contains(t, string(msg.Value), `"sequence":7`)
		assert.Contains(t, msg.Headers, kafka.Header{Key: "event-type", Value: []byte("STATUS_UPDATED")})

		require.NoError(t, b.Close())
		assert.True(t, w.closed)
	})

	t.Run("Write Failure Is A Publish Error", func(t *testing.T) {
		b := newBroker(&fakeWriter{err: kafka.MessageSizeTooLarge}, testLogger())

		err := b.Publish(context.Background(), event)
		assert.ErrorIs(t, err, domain.ErrRejected)
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.PublishErrorKind
	}{
		{"non retriable code", kafka.MessageSizeTooLarge, domain.PublishRejected},
		{"retriable code", kafka.LeaderNotAvailable, domain.PublishUnavailable},
		{"request timed out", kafka.RequestTimedOut, domain.PublishTimeout},
		{"deadline", fmt.Errorf("write: %w", context.DeadlineExceeded), domain.PublishTimeout},
		{"batch errors", kafka.WriteErrors{nil, kafka.TopicAuthorizationFailed}, domain.PublishRejected},
		{"unknown", errors.New("dial tcp: connection refused"), domain.PublishUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perr := classify("evt-1", tt.err)
			assert.Equal(t, tt.want, perr.Kind)
			assert.Equal(t, "evt-1", perr.EventID)
		})
	}
}
