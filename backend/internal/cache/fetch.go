package cache

import (
	"context"
	"errors"
	"time"

	apperrors "chain-graph/backend/pkg/errors"
)

// Fetch returns the cached value for key or computes it with load, caching
// the result. Concurrent misses for the same key share one load. A nil cache
// simply calls load. sizeOf reports the node count that picks the tier; nil
// means the value is small.
//
// The shared load runs on the context of the caller that started it. Each
// caller waits on its own context, and a caller whose context is still live
// reloads once when the shared load died of another caller's cancellation.
func Fetch[T any](
	ctx context.Context,
	c *Cache,
	key Key,
	ttl time.Duration,
	sizeOf func(T) int,
	load func(context.Context) (T, error),
) (T, error) {
	if c == nil {
		return load(ctx)
	}

	var cached T
	if c.Get(key, &cached) {
		return cached, nil
	}

	store := func(ctx context.Context) (interface{}, error) {
		result, err := load(ctx)
		if err != nil {
			return result, err
		}
		size := 0
		if sizeOf != nil {
			size = sizeOf(result)
		}
		c.Set(key, result, size, ttl, nil)
		return result, nil
	}

	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-c.flight.DoChan(key.String(), func() (interface{}, error) { return store(ctx) }):
		if res.Shared {
			c.logger.Debug("Collapsed concurrent cache miss")
		}
		if res.Err == nil {
			return res.Val.(T), nil
		}
		if !isContextError(res.Err) || ctx.Err() != nil {
			return zero, res.Err
		}
		v, err := store(ctx)
		if err != nil {
			return zero, err
		}
		return v.(T), nil
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		apperrors.IsErrorType(err, apperrors.ErrorTypeContext)
}
