package resilience

import (
	"context"
	"time"
)

type (
	// StaleResult wraps a keyed operation with last-known-good serving:
	// successful results are cached, and when the operation later fails
	// with a fallback-eligible kind, the cached value is served instead
	// of the error and a degradation event is emitted.
	//
	// StaleResult is a standalone wrapper; compose it around a
	// [Guard.Do] or [RateQueue.Enqueue] call as needed.
	StaleResult[K comparable, V any] struct {
		resource string
		cache    Cache[K, V]
		ttl      time.Duration
		hooks    *Hooks
		clock    Clock
	}

	// StaleOption configures a [StaleResult].
	StaleOption[K comparable, V any] func(*StaleResult[K, V])
)

// StaleHooks sets the hooks receiving stale-served and degradation events.
func StaleHooks[K comparable, V any](h *Hooks) StaleOption[K, V] {
	return func(s *StaleResult[K, V]) {
		s.hooks = h
	}
}

// StaleClock sets the clock used to stamp degradation events.
func StaleClock[K comparable, V any](c Clock) StaleOption[K, V] {
	return func(s *StaleResult[K, V]) {
		s.clock = c
	}
}

// NewStaleResult creates a last-known-good wrapper backed by the given
// cache. The ttl bounds how long a stored result may be served stale.
func NewStaleResult[K comparable, V any](
	resource string,
	cache Cache[K, V],
	ttl time.Duration,
	opts ...StaleOption[K, V],
) *StaleResult[K, V] {
	s := &StaleResult[K, V]{
		resource: resource,
		cache:    cache,
		ttl:      ttl,
		clock:    RealClock{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Do executes fn for key. On success the result is stored; on a
// fallback-eligible failure the last stored result is served, if any.
// Cache errors never mask the operation's own outcome.
//
//nolint:ireturn // generic type parameter V, not an interface
func (s *StaleResult[K, V]) Do(
	ctx context.Context,
	key K,
	fn func(context.Context, K) (V, error),
) (V, error) {
	result, err := fn(ctx, key)
	if err == nil {
		_ = s.cache.Set(ctx, key, result, s.ttl)

		return result, nil
	}

	ne := Classify(err)

	if fallbackEligible[ne.Code] {
		if cached, hit, cacheErr := s.cache.Get(ctx, key); cacheErr == nil && hit {
			ev := DegradationEvent{
				Resource:  s.resource,
				Code:      ne.Code,
				Err:       ne,
				Timestamp: s.clock.Now(),
			}

			go s.hooks.emitDegraded(ev)
			s.hooks.emitStaleServed(s.resource)

			return cached, nil
		}
	}

	var zero V

	return zero, ne
}
