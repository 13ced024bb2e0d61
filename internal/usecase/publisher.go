package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/V4T54L/foodhub/internal/adapter/metrics"
	"github.com/V4T54L/foodhub/internal/domain"
)

const (
	defaultPublishAttempts = 5
	defaultBaseDelay       = 100 * time.Millisecond
	defaultMaxDelay        = 2 * time.Second
	defaultAttemptTimeout  = 2 * time.Second
)

// RetryConfig bounds the publish retry loop.
type RetryConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	AttemptTimeout time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultPublishAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = defaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = defaultMaxDelay
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaultAttemptTimeout
	}
	return c
}

// PayloadRedactor scrubs sensitive fields from an event payload in place.
type PayloadRedactor interface {
	Redact(event *domain.DomainEvent) error
}

// EventPublisher delivers domain events to the broker with bounded, jittered
// retries. Events that cannot be delivered go to the failed-event journal.
type EventPublisher struct {
	broker   domain.EventBroker
	journal  domain.FailedEventJournal
	redactor PayloadRedactor
	retry    RetryConfig
	logger   *slog.Logger
	metrics  *metrics.PipelineMetrics
}

// NewEventPublisher creates an EventPublisher. journal, redactor and m may be nil.
func NewEventPublisher(broker domain.EventBroker, journal domain.FailedEventJournal, redactor PayloadRedactor, retry RetryConfig, logger *slog.Logger, m *metrics.PipelineMetrics) *EventPublisher {
	return &EventPublisher{
		broker:   broker,
		journal:  journal,
		redactor: redactor,
		retry:    retry.withDefaults(),
		logger:   logger.With("component", "event_publisher"),
		metrics:  m,
	}
}

// PublishBatch publishes events one at a time in input order. It stops at the
// first event that cannot be delivered so that no later event of the batch
// overtakes it; that event and the rest of the batch are journaled. It returns
// the number of events delivered and a *domain.PublishError on failure.
func (p *EventPublisher) PublishBatch(ctx context.Context, events []domain.DomainEvent) (int, error) {
	for i := range events {
		event := p.redact(events[i])
		if err := p.Publish(ctx, event); err != nil {
			p.journalRemaining(ctx, event, events[i+1:])
			return i, err
		}
	}
	return len(events), nil
}

// Publish delivers a single event, retrying transient failures. It does not
// journal.
func (p *EventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	var lastErr *domain.PublishError
	for attempt := 1; attempt <= p.retry.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, p.retry.AttemptTimeout)
		err := p.broker.Publish(attemptCtx, event)
		cancel()
		p.metrics.PublishAttempt(err == nil)
		if err == nil {
			if attempt > 1 {
				p.logger.Info("published event after retry", "event_id", event.ID, "attempt", attempt)
			}
			return nil
		}

		lastErr = classifyPublishError(event.ID, attempt, err)
		if !lastErr.Transient() {
			break
		}
		if attempt == p.retry.MaxAttempts {
			break
		}

		delay := p.backoff(attempt)
		p.logger.Warn("failed to publish event, retrying...", "event_id", event.ID, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = &domain.PublishError{Kind: domain.PublishTimeout, EventID: event.ID, Attempts: attempt, Err: ctx.Err()}
			p.metrics.PublishFailed(lastErr.Kind.String())
			return lastErr
		}
	}

	p.metrics.PublishFailed(lastErr.Kind.String())
	p.logger.Error("giving up on event publish", "event_id", event.ID, "topic", event.Topic(), "scope_id", event.ScopeID, "sequence", event.Sequence, "attempts", lastErr.Attempts, "error", lastErr)
	return lastErr
}

// backoff returns a full-jitter delay for the given attempt: a uniform
// duration in [0, min(MaxDelay, BaseDelay*2^(attempt-1))).
func (p *EventPublisher) backoff(attempt int) time.Duration {
	ceiling := p.retry.BaseDelay
	for i := 1; i < attempt && ceiling < p.retry.MaxDelay; i++ {
		ceiling *= 2
	}
	if ceiling > p.retry.MaxDelay {
		ceiling = p.retry.MaxDelay
	}
	if ceiling <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(ceiling)))
}

func (p *EventPublisher) redact(event domain.DomainEvent) domain.DomainEvent {
	if p.redactor == nil {
		return event
	}
	if err := p.redactor.Redact(&event); err != nil {
		p.logger.Warn("failed to redact PII, proceeding with original event", "error", err, "event_id", event.ID)
	}
	return event
}

func (p *EventPublisher) journalRemaining(ctx context.Context, failed domain.DomainEvent, rest []domain.DomainEvent) {
	if p.journal == nil {
		p.logger.Error("failed-event journal is not configured, events are lost", "event_id", failed.ID, "remaining", len(rest))
		return
	}
	pending := make([]domain.DomainEvent, 0, len(rest)+1)
	pending = append(pending, failed)
	for _, e := range rest {
		pending = append(pending, p.redact(e))
	}
	written := 0
	for _, e := range pending {
		if err := p.journal.Write(ctx, e); err != nil {
			p.logger.Error("failed to journal event", "event_id", e.ID, "error", err)
			break
		}
		written++
	}
	p.metrics.Journaled(written)
	p.logger.Warn("journaled unpublished events", "count", written, "first_event_id", failed.ID)
}

func classifyPublishError(eventID string, attempt int, err error) *domain.PublishError {
	var perr *domain.PublishError
	if errors.As(err, &perr) {
		out := *perr
		if out.EventID == "" {
			out.EventID = eventID
		}
		out.Attempts = attempt
		return &out
	}
	kind := domain.PublishUnavailable
	if errors.Is(err, context.DeadlineExceeded) {
		kind = domain.PublishTimeout
	}
	return &domain.PublishError{Kind: kind, EventID: eventID, Attempts: attempt, Err: err}
}
