package resilience

import (
	"context"
	"time"
)

// DegradationEvent records one primary-path failure absorbed into a fallback
// result.
type DegradationEvent struct {
	// Resource names the protected resource whose primary path failed.
	Resource string `json:"resource"`
	// Code is the classified failure kind that made the fallback
	// eligible.
	Code Code `json:"code"`
	// Err is the classified primary failure, for logs only.
	Err error `json:"-"`
	// Timestamp is when the degradation happened.
	Timestamp time.Time `json:"timestamp"`
}

// Pattern: Graceful Degradation — a primary operation composed with a
// fallback; classified resource failures are absorbed into the fallback
// result, caller failures propagate untouched.

// Degrader composes a primary operation with a fallback operation for one
// protected resource. On a primary failure whose classified kind denotes a
// resource failure (see [FallbackEligible]) the fallback runs and a
// degradation event is emitted without blocking the response; caller/input
// failures propagate without falling back, so bugs are never hidden behind a
// degraded "success".
//
// Observed chains in this codebase: cache miss or failure falls back to a
// direct fetch from the source of truth; pool exhaustion falls back to a
// single bounded throwaway connection; compression failure falls back to the
// uncompressed payload.
type Degrader[T any] struct {
	resource string
	primary  func(context.Context) (T, error)
	fallback func(context.Context) (T, error)
	eligible func(*NormalizedError) bool
	hooks    *Hooks
	clock    Clock
}

// DegraderOption configures a [Degrader].
type DegraderOption[T any] func(*Degrader[T])

// EligibleWhen replaces the default fallback-eligibility predicate
// ([FallbackEligible] on the classified code).
func EligibleWhen[T any](fn func(*NormalizedError) bool) DegraderOption[T] {
	return func(d *Degrader[T]) {
		d.eligible = fn
	}
}

// DegraderHooks sets the hooks receiving degradation events.
func DegraderHooks[T any](h *Hooks) DegraderOption[T] {
	return func(d *Degrader[T]) {
		d.hooks = h
	}
}

// DegraderClock sets the clock used to stamp degradation events.
func DegraderClock[T any](c Clock) DegraderOption[T] {
	return func(d *Degrader[T]) {
		d.clock = c
	}
}

// NewDegrader creates a degradation coordinator for one protected resource.
func NewDegrader[T any](
	resource string,
	primary func(context.Context) (T, error),
	fallback func(context.Context) (T, error),
	opts ...DegraderOption[T],
) *Degrader[T] {
	d := &Degrader[T]{
		resource: resource,
		primary:  primary,
		fallback: fallback,
		clock:    RealClock{},
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.eligible == nil {
		d.eligible = func(ne *NormalizedError) bool {
			return fallbackEligible[ne.Code]
		}
	}

	return d
}

// Resource returns the protected resource's name.
func (d *Degrader[T]) Resource() string { return d.resource }

// Do runs the primary operation and, when its classified failure is
// fallback-eligible, serves the fallback result instead. The degradation
// event is emitted on a separate goroutine so the response never blocks on
// observers.
//
//nolint:ireturn // generic type parameter T, not an interface
func (d *Degrader[T]) Do(ctx context.Context) (T, error) {
	result, err := d.primary(ctx)
	if err == nil {
		return result, nil
	}

	ne := Classify(err)

	if !d.eligible(ne) {
		var zero T

		return zero, ne
	}

	ev := DegradationEvent{
		Resource:  d.resource,
		Code:      ne.Code,
		Err:       ne,
		Timestamp: d.clock.Now(),
	}

	go d.hooks.emitDegraded(ev)

	return d.fallback(ctx) //nolint:wrapcheck // fallback's error returned as-is
}
