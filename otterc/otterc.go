// Package otterc provides an in-process cache adapter backed by the Otter
// library, implementing the resilience.Cache interface for use with
// resilience.StaleResult and resilience.CachedFetch.
package otterc

import (
	"context"
	"time"

	"github.com/maypok86/otter"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

// adapter wraps an otter.CacheWithVariableTTL to implement resilience.Cache.
// An in-process cache is always reachable, so every method reports a nil
// error; absence is a plain miss.
type adapter[K comparable, V any] struct {
	cache otter.CacheWithVariableTTL[K, V]
}

// MustNew creates a resilience.Cache backed by an Otter cache with per-entry
// TTL support. MaxSize from [resilience.CacheConfig] configures the
// underlying capacity. It panics if the underlying cache cannot be built.
//
//nolint:ireturn,varnamelen // generic type params K,V are idiomatic in Go
func MustNew[K comparable, V any](cfg resilience.CacheConfig) resilience.Cache[K, V] {
	cache, err := otter.MustBuilder[K, V](cfg.MaxSize).
		WithVariableTTL().
		Build()
	if err != nil {
		panic("resilience/otterc: failed to build cache: " + err.Error())
	}

	return &adapter[K, V]{cache: cache}
}

// Get retrieves a cached value by key.
//
//nolint:ireturn // generic type parameter V, not an interface
func (a *adapter[K, V]) Get(_ context.Context, key K) (V, bool, error) {
	v, ok := a.cache.Get(key)

	return v, ok, nil
}

// Set stores a value with the given TTL.
func (a *adapter[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) error {
	a.cache.Set(key, value, ttl)

	return nil
}

// Delete removes a cached entry by key.
func (a *adapter[K, V]) Delete(_ context.Context, key K) error {
	a.cache.Delete(key)

	return nil
}
