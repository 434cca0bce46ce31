package resilience

import (
	"math/rand/v2"
	"time"
)

// BackoffStrategy computes the delay inserted before a retry attempt.
//
// Pattern: Strategy — swap backoff algorithms (linear, exponential, jittered)
// without changing the retry executor.
type BackoffStrategy interface {
	// Delay returns the duration to wait after the given failed attempt
	// (1-indexed: attempt 1 is the first call to the operation).
	Delay(attempt int) time.Duration
}

// BackoffFunc adapts an ordinary function into a [BackoffStrategy] for
// ad-hoc backoff logic.
type BackoffFunc func(attempt int) time.Duration

// Delay calls the underlying function.
func (f BackoffFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// backoffParams holds the shared knobs of the built-in strategies.
type backoffParams struct {
	jitterRatio float64
	random      func() float64
}

// BackoffOption configures a built-in backoff strategy.
type BackoffOption func(*backoffParams)

// WithJitter perturbs each delay by a uniform factor in
// [1-ratio, 1+ratio], then re-clamps to the strategy's maximum. Jitter
// spreads retries across callers to avoid synchronized retry storms.
// Without this option the strategy is fully deterministic.
func WithJitter(ratio float64) BackoffOption {
	return func(p *backoffParams) {
		p.jitterRatio = ratio
	}
}

// WithRandom replaces the jitter's random source with fn, which must return
// values in [0, 1). Used by tests to make jittered delays reproducible.
func WithRandom(fn func() float64) BackoffOption {
	return func(p *backoffParams) {
		p.random = fn
	}
}

func newBackoffParams(opts []BackoffOption) backoffParams {
	p := backoffParams{random: rand.Float64}
	for _, opt := range opts {
		opt(&p)
	}

	return p
}

// finish clamps the base delay to max, applies jitter if configured, and
// re-clamps the perturbed value.
func (p backoffParams) finish(delay, max time.Duration) time.Duration {
	if max > 0 && delay > max {
		delay = max
	}

	if p.jitterRatio > 0 {
		factor := 1 + p.jitterRatio*(2*p.random()-1)
		delay = time.Duration(float64(delay) * factor)

		if max > 0 && delay > max {
			delay = max
		}
	}

	if delay < 0 {
		delay = 0
	}

	return delay
}

// ---------------------------------------------------------------------------
// LinearBackoff
// ---------------------------------------------------------------------------

// linearBackoff returns initial * attempt, clamped to max.
type linearBackoff struct {
	initial time.Duration
	max     time.Duration
	params  backoffParams
}

func (b *linearBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	return b.params.finish(b.initial*time.Duration(attempt), b.max)
}

// LinearBackoff returns a [BackoffStrategy] whose delay grows linearly:
// initial * attempt, clamped to max. A max of 0 means no cap.
func LinearBackoff(initial, max time.Duration, opts ...BackoffOption) BackoffStrategy {
	return &linearBackoff{
		initial: initial,
		max:     max,
		params:  newBackoffParams(opts),
	}
}

// ---------------------------------------------------------------------------
// ExponentialBackoff
// ---------------------------------------------------------------------------

// exponentialBackoff returns initial * 2^(attempt-1), clamped to max.
type exponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	params  backoffParams
}

func (b *exponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Doubling loop instead of math.Pow: stops at max early, which also
	// avoids overflow for large attempt numbers.
	delay := b.initial
	for i := 1; i < attempt; i++ {
		delay *= 2

		if b.max > 0 && delay >= b.max {
			delay = b.max
			break
		}
	}

	return b.params.finish(delay, b.max)
}

// ExponentialBackoff returns a [BackoffStrategy] whose delay doubles with
// each attempt: initial * 2^(attempt-1), clamped to max. A max of 0 means no
// cap.
func ExponentialBackoff(initial, max time.Duration, opts ...BackoffOption) BackoffStrategy {
	return &exponentialBackoff{
		initial: initial,
		max:     max,
		params:  newBackoffParams(opts),
	}
}
