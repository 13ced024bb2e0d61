package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/V4T54L/foodhub/internal/domain"
)

// DefaultExchange is the topic exchange events are published to.
const DefaultExchange = "foodhub.events"

// Broker publishes domain events to a durable topic exchange with publisher
// confirms. Routing keys are "<topic>.<scopeId>" for every entity family, so
// a queue bound to "foodhub.events.#" (or to one scope) receives each
// restaurant's menu and order events in commit order.
type Broker struct {
	url      string
	exchange string
	logger   *slog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to RabbitMQ and declares the exchange.
func Dial(url, exchange string, logger *slog.Logger) (*Broker, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	b := &Broker{url: url, exchange: exchange, logger: logger.With("component", "rabbitmq_broker")}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b, nil
}

// connect must be called with mu held.
func (b *Broker) connect() error {
	conn, err := amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(b.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", b.exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	b.conn, b.ch = conn, ch
	return nil
}

func (b *Broker) channel() (*amqp.Channel, error) {
	if b.ch != nil && !b.ch.IsClosed() {
		return b.ch, nil
	}
	if b.conn != nil {
		_ = b.conn.Close()
	}
	b.conn, b.ch = nil, nil
	b.logger.Info("reconnecting to rabbitmq")
	if err := b.connect(); err != nil {
		return nil, err
	}
	return b.ch, nil
}

func routingKey(event domain.DomainEvent) string {
	return event.Topic() + "." + event.PartitionKey()
}

func publishing(event domain.DomainEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		Headers: amqp.Table{
			"entity":   string(event.Entity),
			"scope_id": event.ScopeID,
			"sequence": event.Sequence,
		},
		Body: body,
	}, nil
}

// Publish sends the event and waits for the broker's confirm. Confirms are
// awaited under the lock, so publishes on one Broker are serialised.
func (b *Broker) Publish(ctx context.Context, event domain.DomainEvent) error {
	msg, err := publishing(event)
	if err != nil {
		return &domain.PublishError{Kind: domain.PublishRejected, EventID: event.ID, Attempts: 1, Err: fmt.Errorf("failed to marshal event: %w", err)}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ch, err := b.channel()
	if err != nil {
		return classify(event.ID, err)
	}
	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, b.exchange, routingKey(event), false, false, msg)
	if err != nil {
		return classify(event.ID, err)
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return classify(event.ID, err)
	}
	if !acked {
		return &domain.PublishError{Kind: domain.PublishRejected, EventID: event.ID, Attempts: 1, Err: errors.New("broker nacked the message")}
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn, b.ch = nil, nil
	if errors.Is(err, amqp.ErrClosed) {
		return nil
	}
	return err
}

// classify maps amqp errors onto the publish taxonomy. Soft channel
// exceptions raised by the server, such as a missing exchange or access
// refused, are rejections; connection-level failures are unavailability.
func classify(eventID string, err error) *domain.PublishError {
	perr := &domain.PublishError{Kind: domain.PublishUnavailable, EventID: eventID, Attempts: 1, Err: err}
	var amqpErr *amqp.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		perr.Kind = domain.PublishTimeout
	case errors.Is(err, amqp.ErrClosed):
		perr.Kind = domain.PublishUnavailable
	case errors.As(err, &amqpErr) && amqpErr.Server && amqpErr.Recover:
		perr.Kind = domain.PublishRejected
	}
	return perr
}
