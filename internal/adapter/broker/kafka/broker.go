package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/V4T54L/foodhub/internal/domain"
)

// messageWriter is the part of *kafka.Writer the broker uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Broker publishes domain events to Kafka. Messages are keyed by scope id and
// the hash balancer maps a key to one partition, so one restaurant's events
// stay in commit order.
type Broker struct {
	writer messageWriter
	logger *slog.Logger
}

// NewBroker creates a Broker writing to brokers. Retries are left to the
// event publisher, so the writer makes a single attempt per call.
func NewBroker(brokers []string, logger *slog.Logger) *Broker {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            1,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newBroker(w, logger)
}

func newBroker(w messageWriter, logger *slog.Logger) *Broker {
	return &Broker{writer: w, logger: logger.With("component", "kafka_broker")}
}

func message(event domain.DomainEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Topic: event.Topic(),
		Key:   []byte(event.PartitionKey()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID)},
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "entity", Value: []byte(event.Entity)},
		},
		Time: event.Timestamp,
	}, nil
}

func (b *Broker) Publish(ctx context.Context, event domain.DomainEvent) error {
	msg, err := message(event)
	if err != nil {
		return &domain.PublishError{Kind: domain.PublishRejected, EventID: event.ID, Attempts: 1, Err: fmt.Errorf("failed to marshal event: %w", err)}
	}
	if err := b.writer.WriteMessages(ctx, msg); err != nil {
		perr := classify(event.ID, err)
		b.logger.Debug("kafka write failed", "event_id", event.ID, "topic", msg.Topic, "kind", perr.Kind.String(), "error", err)
		return perr
	}
	return nil
}

func (b *Broker) Close() error {
	return b.writer.Close()
}

// classify maps a writer error onto the publish taxonomy. Kafka error codes
// that the protocol marks non-retriable are rejections.
func classify(eventID string, err error) *domain.PublishError {
	perr := &domain.PublishError{Kind: domain.PublishUnavailable, EventID: eventID, Attempts: 1, Err: err}

	var writeErrs kafka.WriteErrors
	if errors.As(err, &writeErrs) {
		for _, e := range writeErrs {
			if e != nil {
				perr.Kind = classify(eventID, e).Kind
				return perr
			}
		}
	}

	var kerr kafka.Error
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		perr.Kind = domain.PublishTimeout
	case errors.As(err, &kerr):
		switch {
		case kerr.Timeout():
			perr.Kind = domain.PublishTimeout
		case kerr.Temporary():
			perr.Kind = domain.PublishUnavailable
		default:
			perr.Kind = domain.PublishRejected
		}
	case errors.As(err, &netErr) && netErr.Timeout():
		perr.Kind = domain.PublishTimeout
	}
	return perr
}
