package usecase

import (
	"context"
	"log/slog"
	"sync"

	"github.com/V4T54L/foodhub/internal/adapter/metrics"
	"github.com/V4T54L/foodhub/internal/domain"
)

const defaultBatchSize = 100

// EventSink receives events that passed the sequence check.
type EventSink interface {
	Deliver(event domain.DomainEvent)
}

// EventFanoutUseCase reads published events through a consumer group, drops
// sequences already seen per scope, and hands the rest to a sink. A sequence
// that arrives after a higher one (a replayed journal entry) is still
// delivered once.
type EventFanoutUseCase struct {
	stream   domain.EventStreamReader
	tracker  domain.SequenceTracker
	sink     EventSink
	logger   *slog.Logger
	metrics  *metrics.PipelineMetrics
	group    string
	consumer string
}

// NewEventFanoutUseCase creates a new use case for fanning out events.
func NewEventFanoutUseCase(stream domain.EventStreamReader, tracker domain.SequenceTracker, sink EventSink, logger *slog.Logger, m *metrics.PipelineMetrics, group, consumer string) *EventFanoutUseCase {
	return &EventFanoutUseCase{
		stream:   stream,
		tracker:  tracker,
		sink:     sink,
		logger:   logger.With("component", "event_fanout"),
		metrics:  m,
		group:    group,
		consumer: consumer,
	}
}

// ProcessBatch reads a batch of events, delivers the fresh ones and
// acknowledges the whole batch. It returns the number of events delivered.
func (uc *EventFanoutUseCase) ProcessBatch(ctx context.Context) (int, error) {
	events, err := uc.stream.ReadEvents(ctx, uc.group, uc.consumer, defaultBatchSize)
	if err != nil {
		uc.logger.Error("failed to read event batch from stream", "error", err)
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	uc.logger.Debug("read batch of events from stream", "count", len(events))

	delivered := 0
	messageIDs := make([]string, 0, len(events))
	for _, event := range events {
		messageIDs = append(messageIDs, event.StreamMessageID)

		fresh, err := uc.tracker.Advance(ctx, event.ScopeID, event.Sequence)
		if err != nil {
			// Delivery is at-least-once; a tracker outage lets duplicates through.
			uc.logger.Warn("sequence tracker failed, delivering event unchecked", "event_id", event.ID, "error", err)
			fresh = true
		}
		if !fresh {
			uc.metrics.Consumed("stale")
			uc.logger.Debug("dropping stale event", "event_id", event.ID, "scope_id", event.ScopeID, "sequence", event.Sequence)
			continue
		}
		uc.sink.Deliver(event)
		uc.metrics.Consumed("delivered")
		delivered++
	}

	if err := uc.stream.AcknowledgeEvents(ctx, uc.group, messageIDs...); err != nil {
		// The batch will be redelivered; the tracker drops it then.
		uc.logger.Error("failed to acknowledge events", "error", err)
		return delivered, err
	}

	uc.logger.Debug("processed event batch", "read", len(events), "delivered", delivered)
	return delivered, nil
}

const maxTrackedGap = 1024

// MemorySequenceTracker is a process-local domain.SequenceTracker.
type MemorySequenceTracker struct {
	mu     sync.Mutex
	scopes map[string]*scopeSequences
}

type scopeSequences struct {
	high int64
	gaps map[int64]struct{}
}

func NewMemorySequenceTracker() *MemorySequenceTracker {
	return &MemorySequenceTracker{scopes: make(map[string]*scopeSequences)}
}

func (t *MemorySequenceTracker) Advance(ctx context.Context, scopeID string, seq int64) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sc, ok := t.scopes[scopeID]
	if !ok {
		t.scopes[scopeID] = &scopeSequences{high: seq, gaps: make(map[int64]struct{})}
		return true, nil
	}
	if seq > sc.high {
		from := max(sc.high+1, seq-maxTrackedGap)
		for s := from; s < seq; s++ {
			sc.gaps[s] = struct{}{}
		}
		sc.high = seq
		return true, nil
	}
	if _, missing := sc.gaps[seq]; missing {
		delete(sc.gaps, seq)
		return true, nil
	}
	return false, nil
}
