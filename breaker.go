package resilience

import (
	"sync/atomic"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

type (
	breakerConfig struct {
		failureThreshold  int
		recoveryTimeout   time.Duration
		halfOpenMaxProbes int
	}

	// BreakerOption configures a circuit breaker.
	BreakerOption func(*breakerConfig)

	// Breaker tracks the health of one scarce dependency and fails fast
	// while it is down, producing a CIRCUIT_OPEN failure that is
	// fallback-eligible but not retryable.
	//
	// Only resource failures count toward opening the breaker: caller
	// failures (CLIENT_INPUT_ERROR) and quota rejections (RATE_LIMIT)
	// say nothing about the dependency's health, so they neither trip
	// nor reset it.
	//
	// Pattern: Circuit Breaker — lock-free state transitions via atomic
	// CAS; auto-recovers through a half-open probe after the recovery
	// timeout.
	Breaker struct {
		name  string
		clock Clock
		hooks *Hooks
		cfg   breakerConfig

		state           atomic.Uint32
		failureCount    atomic.Int64
		lastFailureNano atomic.Int64
		halfOpenOKs     atomic.Int64
	}
)

// Breaker states (stored in an atomic.Uint32).
const (
	breakerClosed   uint32 = 0
	breakerOpen     uint32 = 1
	breakerHalfOpen uint32 = 2
)

func defaultBreakerConfig() breakerConfig {
	return breakerConfig{
		failureThreshold:  5,
		recoveryTimeout:   30 * time.Second,
		halfOpenMaxProbes: 1,
	}
}

// FailureThreshold sets the number of consecutive resource failures before
// the breaker opens.
func FailureThreshold(n int) BreakerOption {
	return func(cfg *breakerConfig) {
		cfg.failureThreshold = n
	}
}

// RecoveryTimeout sets how long the breaker stays open before allowing a
// half-open probe.
func RecoveryTimeout(d time.Duration) BreakerOption {
	return func(cfg *breakerConfig) {
		cfg.recoveryTimeout = d
	}
}

// HalfOpenMaxProbes sets how many successful probes close the breaker from
// half-open.
func HalfOpenMaxProbes(n int) BreakerOption {
	return func(cfg *breakerConfig) {
		cfg.halfOpenMaxProbes = n
	}
}

// NewBreaker creates a circuit breaker for the named resource.
func NewBreaker(name string, clock Clock, hooks *Hooks, opts ...BreakerOption) *Breaker {
	cfg := defaultBreakerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if clock == nil {
		clock = RealClock{}
	}

	return &Breaker{
		name:  name,
		clock: clock,
		hooks: hooks,
		cfg:   cfg,
	}
}

// Allow reports whether a call may proceed. While the breaker is open and
// the recovery timeout has not elapsed it returns a CIRCUIT_OPEN error.
func (b *Breaker) Allow() error {
	if b.state.Load() != breakerOpen {
		return nil
	}

	lastFailure := time.Unix(0, b.lastFailureNano.Load())
	if b.clock.Since(lastFailure) > b.cfg.recoveryTimeout {
		if b.state.CompareAndSwap(breakerOpen, breakerHalfOpen) {
			b.halfOpenOKs.Store(0)
			b.hooks.emitCircuitHalfOpen()
		}
		// Another goroutine may have won the CAS; either way the
		// breaker is half-open now, so the call proceeds as a probe.
		return nil
	}

	return Errorf(CodeCircuitOpen, "circuit open for %s", b.name).
		withDetail("resource", b.name)
}

// RecordSuccess records a successful call.
func (b *Breaker) RecordSuccess() {
	switch b.state.Load() {
	case breakerClosed:
		b.failureCount.Store(0)

	case breakerHalfOpen:
		if b.halfOpenOKs.Add(1) < int64(b.cfg.halfOpenMaxProbes) {
			return
		}

		if !b.state.CompareAndSwap(breakerHalfOpen, breakerClosed) {
			return
		}

		b.failureCount.Store(0)
		b.halfOpenOKs.Store(0)
		b.hooks.emitCircuitClose()

	default:
		// Open: successes are not expected and change nothing.
	}
}

// RecordFailure records a failed call. Failures whose classified kind does
// not reflect the dependency's health are ignored.
func (b *Breaker) RecordFailure(ne *NormalizedError) {
	if ne == nil || !tripEligible(ne.Code) {
		return
	}

	b.lastFailureNano.Store(b.clock.Now().UnixNano())

	switch b.state.Load() {
	case breakerClosed:
		if b.failureCount.Add(1) < int64(b.cfg.failureThreshold) {
			return
		}

		if b.state.CompareAndSwap(breakerClosed, breakerOpen) {
			b.hooks.emitCircuitOpen()
		}

	case breakerHalfOpen:
		// A failed probe reopens immediately.
		if b.state.CompareAndSwap(breakerHalfOpen, breakerOpen) {
			b.halfOpenOKs.Store(0)
			b.hooks.emitCircuitOpen()
		}

	default:
		// Already open.
	}
}

// State returns "closed", "open" or "half_open".
func (b *Breaker) State() string {
	switch b.state.Load() {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// tripEligible reports whether a failure kind reflects the dependency's
// health.
func tripEligible(code Code) bool {
	switch code {
	case CodeClientInput, CodeRateLimit, CodeCircuitOpen:
		return false
	default:
		return true
	}
}
