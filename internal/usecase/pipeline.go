package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/V4T54L/foodhub/internal/adapter/metrics"
	"github.com/V4T54L/foodhub/internal/domain"
)

const defaultStoreTimeout = 5 * time.Second

// MutationPipeline applies a mutation to the store, invalidates every cache
// key it staled and publishes its events. Only a store failure fails the
// call; cache and publish failures degrade the result.
type MutationPipeline struct {
	store        domain.Store
	cache        *CacheCoordinator
	publisher    *EventPublisher
	storeTimeout time.Duration
	logger       *slog.Logger
	metrics      *metrics.PipelineMetrics
	tracer       trace.Tracer
	newID        func() string
	now          func() time.Time
}

// NewMutationPipeline creates a MutationPipeline. m may be nil.
func NewMutationPipeline(store domain.Store, cache *CacheCoordinator, publisher *EventPublisher, storeTimeout time.Duration, logger *slog.Logger, m *metrics.PipelineMetrics) *MutationPipeline {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &MutationPipeline{
		store:        store,
		cache:        cache,
		publisher:    publisher,
		storeTimeout: storeTimeout,
		logger:       logger.With("component", "mutation_pipeline"),
		metrics:      m,
		tracer:       otel.Tracer("mutation-pipeline"),
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// Cache exposes the coordinator so read paths share its key scheme.
func (p *MutationPipeline) Cache() *CacheCoordinator { return p.cache }

// Execute runs spec through the pipeline. The returned error is non-nil only
// when the store did not commit; it is then a *domain.StoreError or a
// *domain.ValidationError and nothing else was attempted.
func (p *MutationPipeline) Execute(ctx context.Context, spec domain.MutationSpec) (domain.MutationResult, error) {
	ctx, span := p.tracer.Start(ctx, "MutationPipeline.Execute",
		trace.WithAttributes(attribute.String("mutation", spec.Mutation())))
	defer span.End()

	log := p.logger.With("mutation", spec.Mutation())
	result := domain.MutationResult{
		State:          domain.StateReceived,
		CacheOutcome:   domain.OutcomeSkipped,
		PublishOutcome: domain.OutcomeSkipped,
	}
	log.Debug("mutation received")

	commit, err := p.apply(ctx, spec)
	if err != nil {
		result.State = domain.StateStoreFailed
		p.metrics.Mutation(spec.Mutation(), string(result.State))
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failed")
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrValidation) {
			log.Info("mutation rejected by store", "error", err)
		} else {
			log.Error("store failed to apply mutation", "error", err)
		}
		return result, err
	}
	result.Entity = commit.Entity
	result.State = domain.StateStoreCommitted
	log.Debug("store committed", "changes", len(commit.Changes))

	// The write is durable from here on. A caller that gives up now only
	// stops waiting; the side effects still run under their own timeouts.
	sideCtx := context.WithoutCancel(ctx)

	result.Keys = p.cache.KeysFor(spec.Entity(), commit.Scopes)
	if err := p.invalidate(sideCtx, result.Keys); err != nil {
		result.CacheOutcome = domain.OutcomeDegraded
		result.CacheErr = err
		log.Warn("cache invalidation failed after commit", "keys", result.Keys, "error", err)
	} else {
		result.CacheOutcome = domain.OutcomeOK
		result.State = domain.StateCacheInvalidated
		log.Debug("cache invalidated", "keys", result.Keys)
	}

	events, err := p.buildEvents(commit.Changes)
	if err == nil {
		result.Events = events
		err = p.publish(sideCtx, events)
	}
	if err != nil {
		result.PublishOutcome = domain.OutcomeDegraded
		result.PublishErr = err
		log.Warn("event publish failed after commit", "error", err)
	} else {
		result.PublishOutcome = domain.OutcomeOK
		if result.CacheOutcome == domain.OutcomeOK {
			result.State = domain.StateEventPublished
		}
		log.Debug("events published", "count", len(events))
	}

	if result.CacheOutcome == domain.OutcomeOK && result.PublishOutcome == domain.OutcomeOK {
		result.State = domain.StateDone
	} else {
		result.State = domain.StateDegraded
		span.SetAttributes(attribute.Bool("degraded", true))
	}
	p.metrics.Mutation(spec.Mutation(), string(result.State))
	return result, nil
}

func (p *MutationPipeline) apply(ctx context.Context, spec domain.MutationSpec) (domain.Commit, error) {
	ctx, span := p.tracer.Start(ctx, "store.apply")
	defer span.End()
	defer p.metrics.Step("store", time.Now())

	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()

	commit, err := p.store.Apply(ctx, spec)
	if err != nil {
		span.RecordError(err)
		return domain.Commit{}, asStoreError(spec, err)
	}
	return commit, nil
}

func (p *MutationPipeline) invalidate(ctx context.Context, keys []domain.CacheKey) error {
	ctx, span := p.tracer.Start(ctx, "cache.invalidate",
		trace.WithAttributes(attribute.Int("keys", len(keys))))
	defer span.End()
	defer p.metrics.Step("cache", time.Now())

	if err := p.cache.Invalidate(ctx, keys); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (p *MutationPipeline) publish(ctx context.Context, events []domain.DomainEvent) error {
	ctx, span := p.tracer.Start(ctx, "events.publish",
		trace.WithAttributes(attribute.Int("events", len(events))))
	defer span.End()
	defer p.metrics.Step("publish", time.Now())

	if _, err := p.publisher.PublishBatch(ctx, events); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// buildEvents turns committed changes into events, preserving commit order.
// A commit without changes is reported as an error so that it degrades the
// result instead of silently announcing nothing.
func (p *MutationPipeline) buildEvents(changes []domain.Change) ([]domain.DomainEvent, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: committed mutation produced no changes", domain.ErrInvalidEvent)
	}
	now := p.now()
	events := make([]domain.DomainEvent, 0, len(changes))
	for _, c := range changes {
		e, err := domain.NewEvent(p.newID(), c.Type, c.Entity, c.EntityID, c.ScopeID, c.Sequence, c.Payload, now)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func asStoreError(spec domain.MutationSpec, err error) error {
	var serr *domain.StoreError
	if errors.As(err, &serr) {
		return serr
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr
	}
	return &domain.StoreError{Kind: domain.StoreUnavailable, Entity: spec.Entity(), Err: err}
}
