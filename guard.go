package resilience

import (
	"context"
	"time"
)

// ---------------------------------------------------------------------------
// Guard[T] — per-resource composition of resilience stages
// ---------------------------------------------------------------------------

// Guard composes the resilience stages protecting one scarce external
// resource (fallback, timeout, retry, circuit breaker, pool, rate-limited
// queue) behind a single [Guard.Do]. Use [NewGuard] with functional options.
//
// Stages are ordered quota-safe regardless of option order: retry wraps the
// queue, so a retried attempt re-enters the queue and is rate-limited like
// any other call.
//
// Pattern: Functional Options — generic options use any to work around Go's
// constraint on generic function values.
type Guard[T any] struct {
	resource string
	hooks    *Hooks
	clock    Clock
	chain    Middleware[T]

	// Stateful stages, kept for status reporting.
	breaker     *Breaker
	pool        *Pool
	queueStatus func() QueueStatus

	registry *Registry
}

// Resource returns the protected resource's name.
func (g *Guard[T]) Resource() string { return g.resource }

// Do executes fn through the composed stage chain.
//
//nolint:ireturn // generic type parameter T, not an interface
func (g *Guard[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	return g.chain(fn)(ctx)
}

// Do is a convenience that wraps a single call with resilience stages
// without creating a named [Guard]. The anonymous guard is not registered
// with any [Registry].
//
//nolint:ireturn // generic type parameter T, not an interface
func Do[T any](ctx context.Context, fn func(context.Context) (T, error), opts ...any) (T, error) {
	return NewGuard[T]("", opts...).Do(ctx, fn)
}

// ---------------------------------------------------------------------------
// Option descriptors — stored as any, interpreted by NewGuard[T]
// ---------------------------------------------------------------------------

// guardOptionFunc is a non-generic option that modifies guardSetup.
type guardOptionFunc func(*guardSetup)

// guardSetup holds non-generic configuration collected before the stage
// descriptors are interpreted.
type guardSetup struct {
	clock    Clock
	hooks    *Hooks
	registry *Registry
}

type (
	timeoutDesc     struct{ d time.Duration }
	retryDesc       struct{ policy RetryPolicy }
	breakerDesc     struct{ opts []BreakerOption }
	poolDesc        struct{ slots int }
	queueDesc       struct{ queue any } // *RateQueue[T] stored as any
	queueConfigDesc struct{ cfg QueueConfig }
	fallbackDesc    struct{ val any } // T stored as any
	// fallbackFuncDesc holds a func(context.Context, *NormalizedError)
	// (T, error) stored as any.
	fallbackFuncDesc struct{ fn any }
)

// WithClock sets the clock used by every stage of this guard.
func WithClock(c Clock) any {
	return guardOptionFunc(func(s *guardSetup) { s.clock = c })
}

// WithHooks sets the lifecycle hooks for every stage of this guard.
func WithHooks(h *Hooks) any {
	return guardOptionFunc(func(s *guardSetup) { s.hooks = h })
}

// WithRegistry sets an explicit registry for the guard to register with.
// Named guards register with [DefaultRegistry] when this option is absent.
func WithRegistry(reg *Registry) any {
	return guardOptionFunc(func(s *guardSetup) { s.registry = reg })
}

// WithTimeout bounds every (possibly retried) call to d.
func WithTimeout(d time.Duration) any {
	return timeoutDesc{d: d}
}

// WithRetry adds bounded retries around the inner stages.
func WithRetry(policy RetryPolicy) any {
	return retryDesc{policy: policy}
}

// WithBreaker adds a circuit breaker that fails fast while the resource is
// unhealthy.
func WithBreaker(opts ...BreakerOption) any {
	return breakerDesc{opts: opts}
}

// WithPool bounds concurrent calls to the resource.
func WithPool(slots int) any {
	return poolDesc{slots: slots}
}

// WithQueue serializes calls through an existing shared [RateQueue]. Use
// this when several guards or call sites must share one gatekeeper.
func WithQueue[T any](q *RateQueue[T]) any {
	return queueDesc{queue: q}
}

// WithQueueConfig serializes calls through a queue owned by this guard.
// Because the quota is aggregate per process, construct the guard once per
// resource and share it.
func WithQueueConfig(cfg QueueConfig) any {
	return queueConfigDesc{cfg: cfg}
}

// WithFallback serves val when the call fails with a fallback-eligible kind.
// The value must match the guard's type parameter.
func WithFallback[T any](val T) any {
	return fallbackDesc{val: val}
}

// WithFallbackFunc calls fn with the classified failure when the call fails
// with a fallback-eligible kind. The signature must be
// func(context.Context, *NormalizedError) (T, error) for the guard's T.
func WithFallbackFunc[T any](fn func(context.Context, *NormalizedError) (T, error)) any {
	return fallbackFuncDesc{fn: fn}
}

// ---------------------------------------------------------------------------
// NewGuard[T]
// ---------------------------------------------------------------------------

// NewGuard creates a guard for the named resource. Non-generic options
// (clock, hooks, registry) are resolved first; stage descriptors then build
// their middleware with the resolved clock and hooks, and the stages are
// chained in their fixed quota-safe order.
func NewGuard[T any](resource string, opts ...any) *Guard[T] {
	var setup guardSetup

	for _, opt := range opts {
		if fn, ok := opt.(guardOptionFunc); ok {
			fn(&setup)
		}
	}

	if setup.clock == nil {
		setup.clock = RealClock{}
	}

	hooks := setup.hooks
	clock := setup.clock

	g := &Guard[T]{
		resource: resource,
		hooks:    hooks,
		clock:    clock,
	}

	var entries []stageEntry[T]

	for _, opt := range opts {
		switch desc := opt.(type) {
		case guardOptionFunc:
			// Resolved above.

		case timeoutDesc:
			d := desc.d
			entries = append(entries, stageEntry[T]{
				priority: stageTimeout,
				name:     "timeout",
				mw: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoTimeout(ctx, d, next, TimeoutParams{
							Message: resource + " call exceeded " + d.String(),
							Hooks:   hooks,
							Clock:   clock,
						})
					}
				},
			})

		case retryDesc:
			policy := desc.policy
			if policy.Hooks == nil {
				policy.Hooks = hooks
			}

			if policy.Clock == nil {
				policy.Clock = clock
			}

			entries = append(entries, stageEntry[T]{
				priority: stageRetry,
				name:     "retry",
				mw: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						return DoRetry(ctx, next, policy)
					}
				},
			})

		case breakerDesc:
			g.breaker = NewBreaker(resource, clock, hooks, desc.opts...)
			breaker := g.breaker
			entries = append(entries, stageEntry[T]{
				priority: stageBreaker,
				name:     "breaker",
				mw: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						if err := breaker.Allow(); err != nil {
							var zero T

							return zero, err
						}

						val, err := next(ctx)
						if err != nil {
							breaker.RecordFailure(Classify(err))
						} else {
							breaker.RecordSuccess()
						}

						return val, err
					}
				},
			})

		case poolDesc:
			g.pool = NewPool(resource, desc.slots, hooks)
			pool := g.pool
			entries = append(entries, stageEntry[T]{
				priority: stagePool,
				name:     "pool",
				mw: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
					return func(ctx context.Context) (T, error) {
						if err := pool.Acquire(); err != nil {
							var zero T

							return zero, err
						}
						defer pool.Release()

						return next(ctx)
					}
				},
			})

		case queueDesc:
			queue, ok := desc.queue.(*RateQueue[T])
			if !ok {
				panic("resilience: WithQueue type parameter does not match guard")
			}

			g.queueStatus = queue.Status
			entries = append(entries, queueStage(queue))

		case queueConfigDesc:
			cfg := desc.cfg
			if cfg.Hooks == nil {
				cfg.Hooks = hooks
			}

			if cfg.Clock == nil {
				cfg.Clock = clock
			}

			queue := NewRateQueue[T](resource, cfg)
			g.queueStatus = queue.Status
			entries = append(entries, queueStage(queue))

		case fallbackDesc:
			val, ok := desc.val.(T)
			if !ok {
				panic("resilience: WithFallback type parameter does not match guard")
			}

			entries = append(entries, fallbackStage(g, func(context.Context, *NormalizedError) (T, error) {
				return val, nil
			}))

		case fallbackFuncDesc:
			fn, ok := desc.fn.(func(context.Context, *NormalizedError) (T, error))
			if !ok {
				panic("resilience: WithFallbackFunc type parameter does not match guard")
			}

			entries = append(entries, fallbackStage(g, fn))
		}
	}

	g.chain = Chain(orderStages(entries)...)

	// Named guards register for readiness reporting.
	if resource != "" {
		reg := setup.registry
		if reg == nil {
			reg = DefaultRegistry()
		}

		g.registry = reg
		reg.Register(g)
	}

	return g
}

// queueStage builds the innermost stage: serialization through the
// rate-limited queue.
func queueStage[T any](queue *RateQueue[T]) stageEntry[T] {
	return stageEntry[T]{
		priority: stageQueue,
		name:     "queue",
		mw: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
			return func(ctx context.Context) (T, error) {
				return queue.Enqueue(ctx, next)
			}
		},
	}
}

// fallbackStage builds the outermost stage: degradation to a fallback result
// for resource failures, propagation for caller failures.
func fallbackStage[T any](g *Guard[T], fn func(context.Context, *NormalizedError) (T, error)) stageEntry[T] {
	return stageEntry[T]{
		priority: stageFallback,
		name:     "fallback",
		mw: func(next func(context.Context) (T, error)) func(context.Context) (T, error) {
			return func(ctx context.Context) (T, error) {
				result, err := next(ctx)
				if err == nil {
					return result, nil
				}

				ne := Classify(err)

				if !fallbackEligible[ne.Code] {
					var zero T

					return zero, ne
				}

				ev := DegradationEvent{
					Resource:  g.resource,
					Code:      ne.Code,
					Err:       ne,
					Timestamp: g.clock.Now(),
				}

				go g.hooks.emitDegraded(ev)

				return fn(ctx, ne)
			}
		},
	}
}
