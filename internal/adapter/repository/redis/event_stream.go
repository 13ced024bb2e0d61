package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/foodhub/internal/domain"
)

const (
	payloadField = "payload"
	defaultBlock = 2 * time.Second
	refSeparator = "/"
)

// StreamConfig configures an EventStream.
type StreamConfig struct {
	// MaxLen caps each stream with approximate trimming; 0 disables it.
	MaxLen int64
	// Block is how long ReadEvents waits for new entries.
	Block time.Duration
}

// EventStream publishes domain events to the Redis stream named by their
// topic and reads them back through consumer groups. XADD order on the
// single events stream is the delivery order. It implements domain.EventBroker
// and domain.EventStreamReader.
type EventStream struct {
	client      *redis.Client
	logger      *slog.Logger
	maxLen      int64
	block       time.Duration
	isAvailable atomic.Bool
}

// NewEventStream creates a Redis Streams event bus.
func NewEventStream(client *redis.Client, cfg StreamConfig, logger *slog.Logger) *EventStream {
	if cfg.Block == 0 {
		cfg.Block = defaultBlock
	}
	s := &EventStream{
		client: client,
		logger: logger.With("component", "redis_event_stream"),
		maxLen: cfg.MaxLen,
		block:  cfg.Block,
	}
	s.isAvailable.Store(true) // Assume available initially
	return s
}

// SetupConsumerGroup creates group on every topic stream, creating the
// streams when missing. An existing group is not an error.
func (s *EventStream) SetupConsumerGroup(ctx context.Context, group string) error {
	for _, topic := range domain.Topics() {
		err := s.client.XGroupCreateMkStream(ctx, topic, group, "0").Err()
		if err != nil && !isRedisBusyGroupError(err) {
			return fmt.Errorf("failed to create consumer group %s on %s: %w", group, topic, err)
		}
	}
	return nil
}

// StartHealthCheck pings Redis every interval and tracks availability. While
// Redis is down Publish fails fast so the publisher can journal the event.
func (s *EventStream) StartHealthCheck(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping Redis health check")
			return
		case <-ticker.C:
			if err := s.client.Ping(ctx).Err(); err != nil {
				if s.isAvailable.CompareAndSwap(true, false) {
					s.logger.Error("Redis connection lost", "error", err)
				}
			} else if s.isAvailable.CompareAndSwap(false, true) {
				s.logger.Info("Redis connection recovered")
			}
		}
	}
}

// Publish appends the event to the events stream.
func (s *EventStream) Publish(ctx context.Context, event domain.DomainEvent) error {
	if !s.isAvailable.Load() {
		return &domain.PublishError{Kind: domain.PublishUnavailable, EventID: event.ID, Attempts: 1, Err: errors.New("redis is unavailable")}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return &domain.PublishError{Kind: domain.PublishRejected, EventID: event.ID, Attempts: 1, Err: fmt.Errorf("failed to marshal event: %w", err)}
	}

	args := &redis.XAddArgs{
		Stream: event.Topic(),
		Values: map[string]interface{}{
			payloadField: payload,
			"scope_id":   event.PartitionKey(),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		if isNetworkError(err) && !errors.Is(err, context.DeadlineExceeded) && s.isAvailable.CompareAndSwap(true, false) {
			s.logger.Error("Redis connection lost during publish", "error", err)
		}
		return publishError(event.ID, fmt.Errorf("failed to XADD to %s: %w", event.Topic(), err))
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *EventStream) Close() error { return nil }

// ReadEvents reads new events for the consumer across every topic stream.
// Each returned event carries a StreamMessageID of the form "<stream>/<id>".
func (s *EventStream) ReadEvents(ctx context.Context, group, consumer string, count int) ([]domain.DomainEvent, error) {
	topics := domain.Topics()
	streams := make([]string, 0, 2*len(topics))
	streams = append(streams, topics...)
	for range topics {
		streams = append(streams, ">")
	}

	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  streams,
		Count:    int64(count),
		Block:    s.block,
	}

	result, err := s.client.XReadGroup(ctx, args).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to XREADGROUP from redis: %w", err)
	}

	var events []domain.DomainEvent
	for _, stream := range result {
		events = append(events, s.decode(stream.Stream, stream.Messages)...)
	}
	return events, nil
}

func (s *EventStream) decode(stream string, messages []redis.XMessage) []domain.DomainEvent {
	events := make([]domain.DomainEvent, 0, len(messages))
	for _, msg := range messages {
		event, err := decodeMessage(stream, msg)
		if err != nil {
			s.logger.Warn("Invalid message in stream, skipping", "stream", stream, "message_id", msg.ID, "error", err)
			continue
		}
		events = append(events, event)
	}
	return events
}

func decodeMessage(stream string, msg redis.XMessage) (domain.DomainEvent, error) {
	payload, ok := msg.Values[payloadField].(string)
	if !ok {
		return domain.DomainEvent{}, errors.New("missing payload field")
	}
	var event domain.DomainEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return domain.DomainEvent{}, err
	}
	event.StreamMessageID = messageRef(stream, msg.ID)
	return event, nil
}

// AcknowledgeEvents acknowledges "<stream>/<id>" references, one XACK per stream.
func (s *EventStream) AcknowledgeEvents(ctx context.Context, group string, refs ...string) error {
	if len(refs) == 0 {
		return nil
	}
	byStream := make(map[string][]string)
	for _, ref := range refs {
		stream, id, err := parseMessageRef(ref)
		if err != nil {
			return err
		}
		byStream[stream] = append(byStream[stream], id)
	}

	pipe := s.client.Pipeline()
	for stream, ids := range byStream {
		pipe.XAck(ctx, stream, group, ids...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to XACK messages in redis: %w", err)
	}
	return nil
}

func messageRef(stream, id string) string {
	return stream + refSeparator + id
}

func parseMessageRef(ref string) (stream, id string, err error) {
	i := strings.LastIndex(ref, refSeparator)
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("malformed stream message reference %q", ref)
	}
	return ref[:i], ref[i+1:], nil
}
