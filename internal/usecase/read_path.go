package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/V4T54L/foodhub/internal/domain"
)

// ReadPath serves read-through cached reads.
type ReadPath struct {
	cache        *CacheCoordinator
	group        *singleflight.Group
	storeTimeout time.Duration
	logger       *slog.Logger
	tracer       trace.Tracer
}

// NewReadPath creates a ReadPath. With coalesce set, concurrent misses of the
// same key at the same generation share one store read.
func NewReadPath(cache *CacheCoordinator, storeTimeout time.Duration, coalesce bool, logger *slog.Logger) *ReadPath {
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	rp := &ReadPath{
		cache:        cache,
		storeTimeout: storeTimeout,
		logger:       logger.With("component", "read_path"),
		tracer:       otel.Tracer("read-path"),
	}
	if coalesce {
		rp.group = &singleflight.Group{}
	}
	return rp
}

// Read returns the value cached under key, or loads it from the store and
// populates the cache. Cache failures never fail the read.
func Read[T any](ctx context.Context, rp *ReadPath, key domain.CacheKey, load func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := rp.tracer.Start(ctx, "ReadPath.Read",
		trace.WithAttributes(attribute.String("cache.key", string(key))))
	defer span.End()

	var zero T
	cached, err := rp.cache.Lookup(ctx, key)
	if err == nil {
		var v T
		uerr := json.Unmarshal(cached.Data, &v)
		if uerr == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v, nil
		}
		rp.logger.Warn("cached value does not decode, reading store", "key", key, "error", uerr)
	} else if !errors.Is(err, domain.ErrCacheMiss) {
		rp.logger.Warn("cache lookup failed, reading store", "key", key, "error", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	// The generation is taken before the store read. If a mutation
	// invalidates key in between, the populate below is refused.
	gen, genErr := rp.cache.Reserve(ctx, key)
	if genErr != nil {
		rp.logger.Warn("cache generation unavailable, skipping populate", "key", key, "error", genErr)
	}

	fetch := func(ctx context.Context) (T, error) {
		ctx, cancel := context.WithTimeout(ctx, rp.storeTimeout)
		defer cancel()
		v, err := load(ctx)
		if err != nil {
			return zero, err
		}
		if genErr == nil {
			if perr := rp.cache.Populate(ctx, key, v, 0, gen); perr != nil {
				rp.logger.Warn("cache populate failed", "key", key, "error", perr)
			}
		}
		return v, nil
	}

	if rp.group == nil || genErr != nil {
		v, err := fetch(ctx)
		if err != nil {
			span.RecordError(err)
		}
		return v, err
	}

	// Callers that reserved the same generation are concurrent with each
	// other, so sharing one load between them cannot hide a later write.
	flight := fmt.Sprintf("%s@%d", key, gen)
	res, err, _ := rp.group.Do(flight, func() (any, error) {
		return fetch(context.WithoutCancel(ctx))
	})
	if err != nil {
		span.RecordError(err)
		return zero, err
	}
	return res.(T), nil
}
