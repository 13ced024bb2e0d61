package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/foodhub/internal/domain"
)

// StreamAdmin implements domain.StreamAdminRepository over the Redis event
// stream. Pending deliveries are reported with the scope, entity and
// sequence of the event they carry, so an operator can see which
// restaurant a stuck consumer is holding back.
type StreamAdmin struct {
	client *redis.Client
	logger *slog.Logger
}

func NewStreamAdmin(client *redis.Client, logger *slog.Logger) *StreamAdmin {
	return &StreamAdmin{
		client: client,
		logger: logger.With("component", "redis_stream_admin"),
	}
}

func (a *StreamAdmin) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	groups, err := a.client.XInfoGroups(ctx, stream).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get group info for stream %s: %w", stream, err)
	}

	out := make([]domain.ConsumerGroupInfo, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.ConsumerGroupInfo{
			Name:            g.Name,
			Consumers:       g.Consumers,
			Pending:         g.Pending,
			LastDeliveredID: g.LastDeliveredID,
			Lag:             g.Lag,
		})
	}
	return out, nil
}

func (a *StreamAdmin) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	consumers, err := a.client.XInfoConsumers(ctx, stream, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get consumers of group %s on %s: %w", group, stream, err)
	}

	out := make([]domain.ConsumerInfo, 0, len(consumers))
	for _, c := range consumers {
		out = append(out, domain.ConsumerInfo{Name: c.Name, Pending: c.Pending, IdleMs: c.Idle.Milliseconds()})
	}
	return out, nil
}

func (a *StreamAdmin) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	pending, err := a.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get pending summary of group %s on %s: %w", group, stream, err)
	}
	return &domain.PendingMessageSummary{
		Total:          pending.Count,
		FirstMessageID: pending.Lower,
		LastMessageID:  pending.Higher,
		ConsumerTotals: pending.Consumers,
	}, nil
}

// GetPendingMessages lists up to q.Count unacked deliveries from q.StartID,
// looks up the event behind each one and keeps those of q.ScopeID when set.
func (a *StreamAdmin) GetPendingMessages(ctx context.Context, stream, group string, q domain.PendingQuery) ([]domain.PendingMessageDetail, error) {
	entries, err := a.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   stream,
		Group:    group,
		Start:    q.StartID,
		End:      "+",
		Count:    q.Count,
		Consumer: q.Consumer,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deliveries of group %s on %s: %w", group, stream, err)
	}
	if len(entries) == 0 {
		return []domain.PendingMessageDetail{}, nil
	}

	pipe := a.client.Pipeline()
	bodies := make([]*redis.XMessageSliceCmd, len(entries))
	for i, e := range entries {
		bodies[i] = pipe.XRange(ctx, stream, e.ID, e.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to load pending events from %s: %w", stream, err)
	}

	out := make([]domain.PendingMessageDetail, 0, len(entries))
	for i, e := range entries {
		detail := domain.PendingMessageDetail{
			ID:         e.ID,
			Consumer:   e.Consumer,
			IdleMs:     e.Idle.Milliseconds(),
			Deliveries: e.RetryCount,
		}
		a.describe(stream, &detail, bodies[i])
		if q.ScopeID != "" && detail.ScopeID != q.ScopeID {
			continue
		}
		out = append(out, detail)
	}
	return out, nil
}

func (a *StreamAdmin) describe(stream string, detail *domain.PendingMessageDetail, body *redis.XMessageSliceCmd) {
	msgs, err := body.Result()
	if err != nil || len(msgs) == 0 {
		detail.Trimmed = true
		return
	}
	event, err := decodeMessage(stream, msgs[0])
	if err != nil {
		a.logger.Warn("pending delivery carries an undecodable event", "stream", stream, "message_id", detail.ID, "error", err)
		return
	}
	detail.ScopeID = event.ScopeID
	detail.Entity = event.Entity
	detail.EntityID = event.EntityID
	detail.Sequence = event.Sequence
}

// ClaimMessages hands deliveries idle for at least minIdleTime to consumer
// and returns their events. Entries that no longer decode are acked so they
// stop blocking the group.
func (a *StreamAdmin) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.DomainEvent, error) {
	claimed, err := a.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim deliveries for %s: %w", consumer, err)
	}

	events := make([]domain.DomainEvent, 0, len(claimed))
	var broken []string
	for _, msg := range claimed {
		event, err := decodeMessage(stream, msg)
		if err != nil {
			a.logger.Warn("dropping undecodable claimed entry", "stream", stream, "message_id", msg.ID, "error", err)
			broken = append(broken, msg.ID)
			continue
		}
		events = append(events, event)
	}
	if len(broken) > 0 {
		if err := a.client.XAck(ctx, stream, group, broken...).Err(); err != nil {
			return events, fmt.Errorf("failed to ack undecodable entries: %w", err)
		}
	}
	return events, nil
}

func (a *StreamAdmin) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, errors.New("at least one message ID is required")
	}
	return a.client.XAck(ctx, stream, group, messageIDs...).Result()
}

// TrimStream caps the stream at maxLen entries. Trimmed entries that are
// still pending show up as Trimmed in GetPendingMessages.
func (a *StreamAdmin) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	return a.client.XTrimMaxLen(ctx, stream, maxLen).Result()
}
