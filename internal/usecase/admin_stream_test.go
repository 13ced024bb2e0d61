package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/V4T54L/foodhub/internal/domain"
	"github.com/V4T54L/foodhub/internal/domain/mocks"
)

func TestAdminStreamUseCase(t *testing.T) {
	ctx := context.Background()

	t.Run("Unknown Stream Is Rejected", func(t *testing.T) {
		uc := NewAdminStreamUseCase(&mocks.MockStreamAdminRepository{})

		_, err := uc.GetGroupInfo(ctx, "log_events")

		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Pending Messages Defaults", func(t *testing.T) {
		repo := &mocks.MockStreamAdminRepository{}
		uc := NewAdminStreamUseCase(repo)

		_, err := uc.GetPendingMessages(ctx, domain.TopicEvents, "notifier", domain.PendingQuery{ScopeID: "r-1"})

		require.NoError(t, err)
		assert.Equal(t, "-", repo.LastQuery.StartID)
		assert.Equal(t, int64(defaultPendingCount), repo.LastQuery.Count)
		assert.Equal(t, "r-1", repo.LastQuery.ScopeID)
	})

	t.Run("Ack Requires Message IDs", func(t *testing.T) {
		repo := &mocks.MockStreamAdminRepository{}
		uc := NewAdminStreamUseCase(repo)

		_, err := uc.AcknowledgeMessages(ctx, domain.TopicEvents, "notifier")
		assert.ErrorIs(t, err, domain.ErrValidation)

		n, err := uc.AcknowledgeMessages(ctx, domain.TopicEvents, "notifier", "1-0", "2-0")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("Claim And Trim Validate Input", func(t *testing.T) {
		repo := &mocks.MockStreamAdminRepository{}
		uc := NewAdminStreamUseCase(repo)

		_, err := uc.ClaimMessages(ctx, domain.TopicEvents, "notifier", "", time.Minute, []string{"1-0"})
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = uc.TrimStream(ctx, domain.TopicEvents, 0)
		assert.ErrorIs(t, err, domain.ErrValidation)

		_, err = uc.TrimStream(ctx, domain.TopicEvents, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), repo.TrimmedTo)
	})
}
