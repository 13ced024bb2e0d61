package redis

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/V4T54L/foodhub/internal/domain"
)

func isRedisBusyGroupError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, redis.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func cacheError(op string, key domain.CacheKey, err error) *domain.CacheError {
	kind := domain.CacheUnavailable
	if isTimeout(err) {
		kind = domain.CacheTimeout
	}
	return &domain.CacheError{Kind: kind, Op: op, Key: string(key), Err: err}
}

// publishError classifies an XADD failure. Server replies other than
// connectivity problems mean the command itself was refused.
func publishError(eventID string, err error) *domain.PublishError {
	kind := domain.PublishRejected
	switch {
	case isTimeout(err):
		kind = domain.PublishTimeout
	case isNetworkError(err):
		kind = domain.PublishUnavailable
	}
	return &domain.PublishError{Kind: kind, EventID: eventID, Attempts: 1, Err: err}
}
