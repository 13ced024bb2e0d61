package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
)

func TestStreamAdmin(t *testing.T) {
	ctx := context.Background()
	_, client := newTestClient(t)
	stream := NewEventStream(client, StreamConfig{Block: 50 * time.Millisecond}, testLogger())
	admin := NewStreamAdmin(client, testLogger())
	require.NoError(t, stream.SetupConsumerGroup(ctx, "notifier"))

	require.NoError(t, stream.Publish(ctx, testEvent(t, "item-1", domain.EntityMenuItem, "r-1", 1)))
	require.NoError(t, stream.Publish(ctx, testEvent(t, "o-1", domain.EntityOrder, "r-2", 1)))
	require.NoError(t, stream.Publish(ctx, testEvent(t, "item-3", domain.EntityMenuItem, "r-1", 2)))
	delivered, err := stream.ReadEvents(ctx, "notifier", "n-1", 10)
	require.NoError(t, err)
	require.Len(t, delivered, 3)

	summary, err := admin.GetPendingSummary(ctx, domain.TopicEvents, "notifier")
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.Total)
	assert.Equal(t, int64(3), summary.ConsumerTotals["n-1"])

	pending, err := admin.GetPendingMessages(ctx, domain.TopicEvents, "notifier", domain.PendingQuery{StartID: "-", Count: 10})
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "n-1", pending[0].Consumer)
	assert.Equal(t, int64(1), pending[0].Deliveries)
	assert.Equal(t, domain.EntityOrder, pending[1].Entity)
	assert.Equal(t, "r-2", pending[1].ScopeID)

	scoped, err := admin.GetPendingMessages(ctx, domain.TopicEvents, "notifier", domain.PendingQuery{ScopeID: "r-1", StartID: "-", Count: 10})
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, "item-1", scoped[0].EntityID)
	assert.Equal(t, int64(1), scoped[0].Sequence)
	assert.Equal(t, "item-3", scoped[1].EntityID)
	assert.Equal(t, int64(2), scoped[1].Sequence)

	_, firstID, err := parseMessageRef(delivered[0].StreamMessageID)
	require.NoError(t, err)
	claimed, err := admin.ClaimMessages(ctx, domain.TopicEvents, "notifier", "n-2", 0, []string{firstID})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "item-1", claimed[0].EntityID)
	assert.Equal(t, delivered[0].StreamMessageID, claimed[0].StreamMessageID)

	trimmed, err := admin.TrimStream(ctx, domain.TopicEvents, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), trimmed)

	pending, err = admin.GetPendingMessages(ctx, domain.TopicEvents, "notifier", domain.PendingQuery{StartID: "-", Count: 10})
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.True(t, pending[0].Trimmed)
	assert.Empty(t, pending[0].ScopeID)
	assert.False(t, pending[2].Trimmed)

	ids := make([]string, len(delivered))
	for i, e := range delivered {
		_, ids[i], err = parseMessageRef(e.StreamMessageID)
		require.NoError(t, err)
	}
	acked, err := admin.AcknowledgeMessages(ctx, domain.TopicEvents, "notifier", ids...)
	require.NoError(t, err)
	assert.Equal(t, int64(3), acked)

	_, err = admin.AcknowledgeMessages(ctx, domain.TopicEvents, "notifier")
	assert.Error(t, err)
}
