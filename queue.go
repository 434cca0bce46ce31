package resilience

import (
	"context"
	"math"
	"sync"
	"time"
)

// DefaultWindow is the rolling quota window used when [QueueConfig.Window]
// is zero.
const DefaultWindow = 24 * time.Hour

// QueueConfig configures a [RateQueue].
type QueueConfig struct {
	// MinInterval is the minimum gap between two dispatches. Tune it
	// below the provider's per-minute quota with a safety margin.
	MinInterval time.Duration
	// DailyCap bounds the number of successful dispatches per rolling
	// window. Set it conservatively below the provider's stated daily
	// quota. Zero means no cap.
	DailyCap int
	// Window is the rolling quota window. Zero means DefaultWindow. The
	// window is measured from the first dispatch attempt after the
	// previous reset, not from a fixed clock boundary.
	Window time.Duration
	// Bypass routes operations directly, skipping the queue entirely.
	// For trusted or internal call sites only.
	Bypass bool
	// Hooks receives dispatch and cap-exhaustion events. Optional.
	Hooks *Hooks
	// Clock drives the inter-dispatch wait and the quota window. Nil
	// means RealClock.
	Clock Clock
}

// queuedRequest is one deferred operation waiting in the FIFO.
type queuedRequest[T any] struct {
	ctx        context.Context
	fn         func(context.Context) (T, error)
	done       chan queueOutcome[T]
	enqueuedAt time.Time
}

type queueOutcome[T any] struct {
	val T
	err error
}

// RateQueue is a single FIFO gatekeeper for one scarce external resource
// whose quota is aggregate across all callers: per-caller limiting would let
// the sum exceed the provider's limit, so every call in the process must
// serialize through one queue instance. Construct exactly one RateQueue per
// protected resource and inject it into call sites.
//
// The queue enforces a minimum dispatch interval and a rolling daily cap. It
// never retries on the caller's behalf; callers wanting retry compose
// [DoRetry] around [RateQueue.Enqueue].
//
// Known limitation: the interval and daily counters are per process. Under
// horizontal scaling each instance maintains its own budget, so the
// aggregate rate against the provider is not bounded across the fleet.
type RateQueue[T any] struct {
	name string
	cfg  QueueConfig

	mu           sync.Mutex
	pending      []*queuedRequest[T]
	draining     bool
	lastDispatch time.Time
	dailyCount   int
	windowReset  time.Time
}

// QueueStatus is an observability snapshot of a [RateQueue].
type QueueStatus struct {
	Name           string `json:"name"`
	QueueLength    int    `json:"queue_length"`
	Draining       bool   `json:"draining"`
	RequestsToday  int    `json:"requests_today"`
	DailyCap       int    `json:"daily_cap"`
	RemainingToday int    `json:"remaining_today"`
	MinutesToReset int    `json:"minutes_to_reset"`
}

// NewRateQueue creates the gatekeeper for one protected resource. The name
// appears in rejection errors and status snapshots.
func NewRateQueue[T any](name string, cfg QueueConfig) *RateQueue[T] {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}

	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	return &RateQueue[T]{name: name, cfg: cfg}
}

// Name returns the protected resource's name.
func (q *RateQueue[T]) Name() string { return q.name }

// Enqueue appends fn to the tail of the FIFO and blocks until it is
// dispatched and completes, the daily cap rejects it, or ctx is done.
// Cancellation is cooperative: a request abandoned via ctx may still be
// dispatched later with its (already cancelled) context, so operations
// should honor ctx themselves.
//
// With [QueueConfig.Bypass] set, fn runs immediately without queueing.
//
//nolint:ireturn // generic type parameter T, not an interface
func (q *RateQueue[T]) Enqueue(
	ctx context.Context,
	fn func(context.Context) (T, error),
) (T, error) {
	if q.cfg.Bypass {
		return fn(ctx) //nolint:wrapcheck // operation's error returned as-is
	}

	req := &queuedRequest[T]{
		ctx: ctx,
		fn:  fn,
		// Buffered so the drain loop never blocks on an abandoned
		// request.
		done:       make(chan queueOutcome[T], 1),
		enqueuedAt: q.cfg.Clock.Now(),
	}

	q.mu.Lock()
	q.pending = append(q.pending, req)

	// One drain loop per queue instance. The flag is mutex-guarded
	// because Go schedules preemptively; enqueue and dispatch are atomic
	// with respect to each other.
	start := !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}

	var zero T

	select {
	case out := <-req.done:
		return out.val, out.err
	case <-ctx.Done():
		return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}
}

// drain dispatches pending requests one at a time, respecting the minimum
// interval and the daily cap. Exactly one drain loop runs per queue at any
// moment.
func (q *RateQueue[T]) drain() {
	for {
		q.mu.Lock()

		now := q.cfg.Clock.Now()

		// Roll the quota window. The reset happens at the first
		// dispatch attempt observed after the window elapsed.
		if !now.Before(q.windowReset) {
			q.dailyCount = 0
			q.windowReset = now.Add(q.cfg.Window)
		}

		if len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()

			return
		}

		// Hard floor: once the cap is reached, every queued request is
		// rejected immediately rather than parked until the reset.
		if q.cfg.DailyCap > 0 && q.dailyCount >= q.cfg.DailyCap {
			rejected := q.pending
			q.pending = nil
			q.draining = false
			resetIn := q.windowReset.Sub(now)
			q.mu.Unlock()

			rejErr := capExhaustedError(q.name, resetIn)
			for _, req := range rejected {
				req.done <- queueOutcome[T]{err: rejErr}
			}

			q.cfg.Hooks.emitCapExhausted(len(rejected), resetIn)

			return
		}

		wait := q.cfg.MinInterval - now.Sub(q.lastDispatch)
		q.mu.Unlock()

		// The only blocking point in the loop: it delays dispatch
		// without holding the lock, so enqueues proceed concurrently.
		if wait > 0 {
			timer := q.cfg.Clock.NewTimer(wait)
			<-timer.C()
		}

		q.mu.Lock()
		head := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		q.cfg.Hooks.emitDispatch(q.cfg.Clock.Since(head.enqueuedAt))

		val, err := head.fn(head.ctx)

		q.mu.Lock()
		if err == nil {
			q.dailyCount++
		}
		q.lastDispatch = q.cfg.Clock.Now()
		q.mu.Unlock()

		if err != nil {
			head.done <- queueOutcome[T]{err: Classify(err)}
		} else {
			head.done <- queueOutcome[T]{val: val}
		}
	}
}

// Status returns an observability snapshot.
func (q *RateQueue[T]) Status() QueueStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	remaining := 0
	if q.cfg.DailyCap > 0 {
		remaining = q.cfg.DailyCap - q.dailyCount
		if remaining < 0 {
			remaining = 0
		}
	}

	return QueueStatus{
		Name:           q.name,
		QueueLength:    len(q.pending),
		Draining:       q.draining,
		RequestsToday:  q.dailyCount,
		DailyCap:       q.cfg.DailyCap,
		RemainingToday: remaining,
		MinutesToReset: minutesUntil(q.cfg.Clock.Now(), q.windowReset),
	}
}

// minutesUntil returns the whole minutes until t, rounded up, floored at 0.
func minutesUntil(now, t time.Time) int {
	if t.IsZero() || !t.After(now) {
		return 0
	}

	return int(math.Ceil(t.Sub(now).Minutes()))
}

// capExhaustedError builds the RATE_LIMIT rejection for a spent daily cap.
func capExhaustedError(name string, resetIn time.Duration) *NormalizedError {
	minutes := int(math.Ceil(resetIn.Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	return Errorf(CodeRateLimit, "daily request cap exhausted for %s", name).
		withDetail("resource", name).
		withDetail("minutesToReset", minutes)
}
