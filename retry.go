package resilience

import (
	"context"
	"time"
)

// Default retry knobs, used when a [RetryPolicy] leaves them zero.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
)

// RetryPolicy configures [DoRetry]. The zero value retries
// [DefaultMaxAttempts] times with exponential backoff. Policies are immutable
// configuration values supplied per call site.
type RetryPolicy struct {
	// MaxAttempts bounds the total number of operation invocations,
	// including the first. Values below 1 mean the default.
	MaxAttempts int
	// Strategy computes the delay after each failed attempt. Nil means
	// exponential backoff from DefaultInitialDelay to DefaultMaxDelay.
	Strategy BackoffStrategy
	// PerAttemptTimeout, when positive, races every individual attempt
	// against a timer; a fired timer counts as a retryable TIMEOUT
	// failure against the attempt budget.
	PerAttemptTimeout time.Duration
	// OnRetry is invoked after a retryable failure, before the backoff
	// sleep, with the 1-indexed attempt that failed.
	OnRetry func(attempt int, err *NormalizedError)
	// Hooks receives lifecycle events. Optional.
	Hooks *Hooks
	// Clock drives backoff sleeps and timeouts. Nil means RealClock.
	Clock Clock
}

// withDefaults resolves zero fields to their defaults.
func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultMaxAttempts
	}

	if p.Strategy == nil {
		p.Strategy = ExponentialBackoff(DefaultInitialDelay, DefaultMaxDelay)
	}

	if p.Clock == nil {
		p.Clock = RealClock{}
	}

	return p
}

// Pattern: Retry with Backoff — masks transient failures; the classified
// retryability verdict decides whether to stop early.

// DoRetry executes fn with bounded retries. Each failure is classified
// exactly once; a non-retryable verdict or an exhausted attempt budget
// returns the classified error of the last attempt immediately, with no
// trailing delay. Backoff sleeps suspend only the calling goroutine and
// respect ctx cancellation.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoRetry[T any](
	ctx context.Context,
	fn func(context.Context) (T, error),
	policy RetryPolicy,
) (T, error) {
	policy = policy.withDefaults()

	var zero T

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err //nolint:wrapcheck // preserving context error identity
		}

		var (
			result T
			err    error
		)

		if policy.PerAttemptTimeout > 0 {
			result, err = DoTimeout(ctx, policy.PerAttemptTimeout, fn, TimeoutParams{
				Hooks: policy.Hooks,
				Clock: policy.Clock,
			})
		} else {
			result, err = fn(ctx)
		}

		if err == nil {
			return result, nil
		}

		// Parent cancellation is not a failure of the operation; hand
		// the context error back untouched.
		if ctx.Err() != nil {
			return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}

		ne := Classify(err)

		if !ne.Retryable {
			return zero, ne
		}

		if attempt == policy.MaxAttempts {
			return zero, ne.withDetail("attempts", attempt)
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt, ne)
		}

		policy.Hooks.emitRetry(attempt, ne)

		if sleepErr := sleepCtx(ctx, policy.Clock, policy.Strategy.Delay(attempt)); sleepErr != nil {
			return zero, sleepErr
		}
	}

	// Unreachable: the loop always returns.
	return zero, nil
}

// DoRetryTimeout executes fn with bounded retries, racing each individual
// attempt against timeout. A timed-out attempt counts toward the attempt
// budget like any other retryable failure.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoRetryTimeout[T any](
	ctx context.Context,
	timeout time.Duration,
	fn func(context.Context) (T, error),
	policy RetryPolicy,
) (T, error) {
	policy.PerAttemptTimeout = timeout

	return DoRetry(ctx, fn, policy)
}
