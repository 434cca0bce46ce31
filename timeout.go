package resilience

import (
	"context"
	"time"
)

// TimeoutParams holds the optional configuration for [DoTimeout].
type TimeoutParams struct {
	// Message overrides the internal diagnostic text of the TIMEOUT
	// error.
	Message string
	// Hooks receives the timeout event. Optional.
	Hooks *Hooks
	// Clock drives the deadline timer. Nil means RealClock.
	Clock Clock
}

// Pattern: Timeout — races the operation against a timer. Cancellation is
// cooperative: when the timer wins, the wait is abandoned and the derived
// context is cancelled, but the operation's side effects are not forcibly
// aborted. Operations that should stop early must honor their context.

// DoTimeout executes fn, returning a classified TIMEOUT error if it does not
// complete within d. The operation runs with a context that is cancelled when
// the timer fires, and keeps running in the background if it ignores that
// signal.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoTimeout[T any](
	ctx context.Context,
	d time.Duration,
	fn func(context.Context) (T, error),
	params TimeoutParams,
) (T, error) {
	var zero T

	if err := ctx.Err(); err != nil {
		return zero, err //nolint:wrapcheck // preserving context error identity
	}

	clock := params.Clock
	if clock == nil {
		clock = RealClock{}
	}

	attemptCtx, cancel := context.WithCancel(ctx)

	type outcome struct {
		val T
		err error
	}

	// Buffered so an abandoned operation can still deliver its result and
	// terminate.
	done := make(chan outcome, 1)

	go func() {
		val, err := fn(attemptCtx)
		done <- outcome{val: val, err: err}
	}()

	timer := clock.NewTimer(d)

	select {
	case out := <-done:
		timer.Stop()
		cancel()

		return out.val, out.err //nolint:wrapcheck // operation's error returned as-is

	case <-timer.C():
		cancel()
		params.Hooks.emitTimeout()

		message := params.Message
		if message == "" {
			message = "operation exceeded " + d.String()
		}

		return zero, NewError(CodeTimeout, message).
			withDetail("timeoutMs", d.Milliseconds())

	case <-ctx.Done():
		timer.Stop()
		cancel()

		return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}
}
