// Package redisc provides a shared cache adapter backed by Redis,
// implementing the resilience.Cache interface. Values are serialized as
// JSON, so any JSON-encodable type works as a cache value.
//
// Unlike the in-process adapter, the Redis tier can be unreachable; Get
// reports that as an error rather than a miss, which lets
// resilience.CachedFetch degrade to a direct fetch and emit a
// CACHE_UNAVAILABLE event.
package redisc

import (
	"context"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

// adapter wraps a redis client to implement resilience.Cache with string
// keys.
type adapter[V any] struct {
	client redis.UniversalClient
	prefix string
}

// New creates a resilience.Cache backed by the given Redis client. The
// prefix namespaces keys so several caches can share one database.
//
//nolint:ireturn // constructor for the Cache seam
func New[V any](client redis.UniversalClient, prefix string) resilience.Cache[string, V] {
	return &adapter[V]{client: client, prefix: prefix}
}

func (a *adapter[V]) key(k string) string {
	if a.prefix == "" {
		return k
	}

	return a.prefix + ":" + k
}

// Get retrieves a cached value. A missing key is a miss; any transport or
// decode failure is reported as an unavailable tier.
//
//nolint:ireturn // generic type parameter V, not an interface
func (a *adapter[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V

	data, err := a.client.Get(ctx, a.key(key)).Bytes()

	switch {
	case errors.Is(err, redis.Nil):
		return zero, false, nil
	case err != nil:
		return zero, false, fmt.Errorf("redisc: get %q: %w", key, err)
	}

	var value V
	if err = json.Unmarshal(data, &value); err != nil {
		return zero, false, fmt.Errorf("redisc: decode %q: %w", key, err)
	}

	return value, true, nil
}

// Set stores a value with the given TTL.
func (a *adapter[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redisc: encode %q: %w", key, err)
	}

	if err = a.client.Set(ctx, a.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redisc: set %q: %w", key, err)
	}

	return nil
}

// Delete removes a cached entry.
func (a *adapter[V]) Delete(ctx context.Context, key string) error {
	if err := a.client.Del(ctx, a.key(key)).Err(); err != nil {
		return fmt.Errorf("redisc: delete %q: %w", key, err)
	}

	return nil
}
