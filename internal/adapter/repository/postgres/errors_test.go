package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/V4T54L/foodhub/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.StoreErrorKind
	}{
		{"no rows", fmt.Errorf("get: %w", sql.ErrNoRows), domain.StoreNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, domain.StoreConflict},
		{"serialization failure", fmt.Errorf("commit: %w", &pq.Error{Code: "40001"}), domain.StoreConflict},
		{"foreign key violation", &pq.Error{Code: "23503"}, domain.StoreNotFound},
		{"admin shutdown", &pq.Error{Code: "57P01"}, domain.StoreUnavailable},
		{"connection done", sql.ErrConnDone, domain.StoreUnavailable},
		{"deadline", context.DeadlineExceeded, domain.StoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, domain.EntityMenuItem, "item-1")

			var storeErr *domain.StoreError
			if assert.True(t, errors.As(err, &storeErr)) {
				assert.Equal(t, tt.want, storeErr.Kind)
				assert.Equal(t, domain.EntityMenuItem, storeErr.Entity)
				assert.Equal(t, "item-1", storeErr.ID)
			}
		})
	}

	t.Run("Store Errors Pass Through", func(t *testing.T) {
		original := domain.NewNotFound(domain.EntityCategory, "cat-9")
		err := classify(fmt.Errorf("tx: %w", original), domain.EntityMenuItem, "item-1")
		assert.Same(t, original, err)
	})

	t.Run("Nil Stays Nil", func(t *testing.T) {
		assert.NoError(t, classify(nil, domain.EntityOrder, "o-1"))
	})
}

func TestIsNetworkError(t *testing.T) {
	assert.True(t, isNetworkError(sql.ErrConnDone))
	assert.True(t, isNetworkError(fmt.Errorf("query: %w", context.Canceled)))
	assert.False(t, isNetworkError(&pq.Error{Code: "23505"}))
}
