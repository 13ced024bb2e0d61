package usecase

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/V4T54L/foodhub/internal/domain"
)

const defaultPendingCount = 100

// AdminStreamUseCase provides operator actions on the event streams.
type AdminStreamUseCase struct {
	repo domain.StreamAdminRepository
}

// NewAdminStreamUseCase creates a new AdminStreamUseCase.
func NewAdminStreamUseCase(repo domain.StreamAdminRepository) *AdminStreamUseCase {
	return &AdminStreamUseCase{repo: repo}
}

// checkTopic rejects stream names that are not event topics.
func checkTopic(stream string) error {
	if !slices.Contains(domain.Topics(), stream) {
		return domain.NewValidationError("stream", fmt.Sprintf("unknown event stream %q", stream))
	}
	return nil
}

func (uc *AdminStreamUseCase) GetGroupInfo(ctx context.Context, stream string) ([]domain.ConsumerGroupInfo, error) {
	if err := checkTopic(stream); err != nil {
		return nil, err
	}
	return uc.repo.GetGroupInfo(ctx, stream)
}

func (uc *AdminStreamUseCase) GetConsumerInfo(ctx context.Context, stream, group string) ([]domain.ConsumerInfo, error) {
	if err := checkTopic(stream); err != nil {
		return nil, err
	}
	return uc.repo.GetConsumerInfo(ctx, stream, group)
}

func (uc *AdminStreamUseCase) GetPendingSummary(ctx context.Context, stream, group string) (*domain.PendingMessageSummary, error) {
	if err := checkTopic(stream); err != nil {
		return nil, err
	}
	return uc.repo.GetPendingSummary(ctx, stream, group)
}

// GetPendingMessages lists unacked deliveries, optionally narrowed to one
// consumer or one restaurant scope.
func (uc *AdminStreamUseCase) GetPendingMessages(ctx context.Context, stream, group string, q domain.PendingQuery) ([]domain.PendingMessageDetail, error) {
	if err := checkTopic(stream); err != nil {
		return nil, err
	}
	if q.StartID == "" {
		q.StartID = "-"
	}
	if q.Count <= 0 {
		q.Count = defaultPendingCount
	}
	return uc.repo.GetPendingMessages(ctx, stream, group, q)
}

func (uc *AdminStreamUseCase) ClaimMessages(ctx context.Context, stream, group, consumer string, minIdleTime time.Duration, messageIDs []string) ([]domain.DomainEvent, error) {
	if err := checkTopic(stream); err != nil {
		return nil, err
	}
	if consumer == "" || len(messageIDs) == 0 {
		return nil, domain.NewValidationError("messageIds", "consumer and at least one message id are required")
	}
	return uc.repo.ClaimMessages(ctx, stream, group, consumer, minIdleTime, messageIDs)
}

func (uc *AdminStreamUseCase) AcknowledgeMessages(ctx context.Context, stream, group string, messageIDs ...string) (int64, error) {
	if err := checkTopic(stream); err != nil {
		return 0, err
	}
	if len(messageIDs) == 0 {
		return 0, domain.NewValidationError("messageIds", "at least one message id is required")
	}
	return uc.repo.AcknowledgeMessages(ctx, stream, group, messageIDs...)
}

func (uc *AdminStreamUseCase) TrimStream(ctx context.Context, stream string, maxLen int64) (int64, error) {
	if err := checkTopic(stream); err != nil {
		return 0, err
	}
	if maxLen <= 0 {
		return 0, domain.NewValidationError("maxLen", "must be positive")
	}
	return uc.repo.TrimStream(ctx, stream, maxLen)
}
