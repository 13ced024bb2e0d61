package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/V4T54L/foodhub/internal/domain"
)

// ReplayJournalUseCase republishes journaled events in their original order.
// It is run by an operator; nothing triggers it automatically.
type ReplayJournalUseCase struct {
	journal   domain.FailedEventJournal
	publisher *EventPublisher
	logger    *slog.Logger
}

func NewReplayJournalUseCase(journal domain.FailedEventJournal, publisher *EventPublisher, logger *slog.Logger) *ReplayJournalUseCase {
	return &ReplayJournalUseCase{
		journal:   journal,
		publisher: publisher,
		logger:    logger.With("component", "journal_replay"),
	}
}

// Run publishes every journaled event and truncates the journal once all of
// them were delivered. On failure the journal is kept; events already
// delivered are published again by the next run and dropped by consumers on
// their sequence.
func (uc *ReplayJournalUseCase) Run(ctx context.Context) (int, error) {
	replayed := 0
	err := uc.journal.Replay(ctx, func(event domain.DomainEvent) error {
		if err := uc.publisher.Publish(ctx, event); err != nil {
			return err
		}
		replayed++
		return nil
	})
	if err != nil {
		return replayed, fmt.Errorf("journal replay failed after %d events: %w", replayed, err)
	}

	if err := uc.journal.Truncate(ctx); err != nil {
		return replayed, fmt.Errorf("failed to truncate journal after successful replay: %w", err)
	}
	uc.logger.Info("journal replay completed", "events", replayed)
	return replayed, nil
}
