package resilience

import (
	"context"
	"sort"
)

// Pattern: Decorator — each resilience stage wraps the next, forming a chain
// whose order determines semantics.

// Middleware wraps an operation with additional behavior. It receives the
// next stage in the chain and returns the wrapped version.
type Middleware[T any] func(next func(context.Context) (T, error)) func(context.Context) (T, error)

// Chain composes middlewares into one. The first middleware is the outermost
// wrapper: Chain(a, b, c) produces a(b(c(next))). With no middlewares the
// result passes straight through to next.
func Chain[T any](middlewares ...Middleware[T]) Middleware[T] {
	return func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}

// stageEntry pairs a middleware with its fixed position in the chain.
type stageEntry[T any] struct {
	mw       Middleware[T]
	name     string
	priority int
}

// Stage priorities; lower runs outermost. The order is quota-safe: retry
// sits outside the queue so every attempt is itself rate-limited, and the
// queue never retries on the caller's behalf.
const (
	stageFallback = 0 // outermost — last resort
	stageTimeout  = 1
	stageRetry    = 2
	stageBreaker  = 3
	stagePool     = 4
	stageQueue    = 5 // innermost — closest to the operation
)

// orderStages sorts entries by priority (stable, so same-priority stages
// keep their declaration order) and returns the middlewares ready for
// [Chain].
func orderStages[T any](entries []stageEntry[T]) []Middleware[T] {
	if len(entries) == 0 {
		return nil
	}

	sorted := make([]stageEntry[T], len(entries))
	copy(sorted, entries)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].priority < sorted[j].priority
	})

	mws := make([]Middleware[T], 0, len(sorted))
	for _, e := range sorted {
		mws = append(mws, e.mw)
	}

	return mws
}
