package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"

	"github.com/V4T54L/foodhub/internal/domain"
)

// classify turns a driver error into a *domain.StoreError for entity/id.
// StoreErrors raised inside a transaction pass through unchanged.
func classify(err error, entity domain.EntityType, id string) error {
	if err == nil {
		return nil
	}
	var storeErr *domain.StoreError
	if errors.As(err, &storeErr) {
		return storeErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFound(entity, id)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23514", "40001", "40P01", "55P03":
			// unique_violation, check_violation, serialization_failure,
			// deadlock_detected, lock_not_available
			return domain.NewConflict(entity, id, err)
		case "23503":
			return &domain.StoreError{Kind: domain.StoreNotFound, Entity: entity, ID: id, Err: err}
		}
		return unavailable(entity, id, err)
	}
	return unavailable(entity, id, err)
}

func unavailable(entity domain.EntityType, id string, err error) *domain.StoreError {
	return &domain.StoreError{Kind: domain.StoreUnavailable, Entity: entity, ID: id, Err: err}
}

// isNetworkError reports whether err means the database could not be reached.
func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
