package resilience

import (
	"context"
	"time"
)

type (
	// Cache is the seam cache adapters implement. Get distinguishes a
	// miss (false, nil error) from an unavailable cache tier (non-nil
	// error), because the two degrade differently: a miss is normal
	// cache-aside traffic, while an unreachable cache is a resource
	// failure worth a degradation event.
	Cache[K comparable, V any] interface {
		// Get retrieves a cached value. The boolean reports a hit.
		Get(ctx context.Context, key K) (V, bool, error)
		// Set stores a value with the given TTL. Best-effort callers
		// may ignore the error.
		Set(ctx context.Context, key K, value V, ttl time.Duration) error
		// Delete removes an entry.
		Delete(ctx context.Context, key K) error
	}

	// CacheConfig holds sizing for a cache adapter instance.
	CacheConfig struct {
		// Options holds adapter-specific settings.
		Options map[string]any
		// TTL is the default time-to-live for entries.
		TTL time.Duration
		// MaxSize bounds the number of entries for in-process
		// adapters.
		MaxSize int
	}

	// FetchParams configures [CachedFetch].
	FetchParams struct {
		// Resource names the cache tier in degradation events.
		Resource string
		// Hooks receives degradation events when the cache tier is
		// unavailable. Optional.
		Hooks *Hooks
		// Clock stamps degradation events. Nil means RealClock.
		Clock Clock
	}
)

// CachedFetch is cache-aside with graceful degradation: try the cache, fall
// back to fetching from the source of truth on a miss, and keep serving when
// the cache tier itself is down. A cache failure (as opposed to a miss)
// emits a CACHE_UNAVAILABLE degradation event without blocking the response;
// the fetch result is written back best-effort.
//
//nolint:ireturn // generic type parameter V, not an interface
func CachedFetch[K comparable, V any](
	ctx context.Context,
	cache Cache[K, V],
	key K,
	ttl time.Duration,
	fetch func(context.Context) (V, error),
	params FetchParams,
) (V, error) {
	clock := params.Clock
	if clock == nil {
		clock = RealClock{}
	}

	cached, hit, err := cache.Get(ctx, key)

	switch {
	case err != nil:
		ne := wrapError(CodeCacheUnavailable, err)
		ev := DegradationEvent{
			Resource:  params.Resource,
			Code:      CodeCacheUnavailable,
			Err:       ne,
			Timestamp: clock.Now(),
		}

		go params.Hooks.emitDegraded(ev)

	case hit:
		return cached, nil
	}

	result, fetchErr := fetch(ctx)
	if fetchErr != nil {
		var zero V

		return zero, Classify(fetchErr)
	}

	// Write-back is best-effort: an unavailable cache must not fail a
	// request that already has its answer.
	if err == nil {
		_ = cache.Set(ctx, key, result, ttl)
	}

	return result, nil
}
