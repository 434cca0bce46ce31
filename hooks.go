package resilience

import "time"

// Hooks holds optional callbacks for resilience lifecycle events. All fields
// are nil by default; callers set only the hooks they care about. A Hooks
// value must not be mutated after construction — emit methods read the
// function fields without synchronisation.
//
// Pattern: Observer — decouples event emission from consumers (logging,
// metrics, alerting) without the patterns knowing about observers.
type Hooks struct {
	// OnRetry fires before each backoff sleep, with the 1-indexed attempt
	// that just failed and its classified error.
	OnRetry func(attempt int, err *NormalizedError)
	// OnTimeout fires when an attempt exceeds its allotted time.
	OnTimeout func()
	// OnDispatch fires when the queue dispatches a request, with the time
	// the request spent waiting.
	OnDispatch func(waited time.Duration)
	// OnCapExhausted fires when the queue's daily cap rejects pending
	// requests, with the rejection count and the time until the window
	// resets.
	OnCapExhausted func(rejected int, resetIn time.Duration)
	// OnDegraded fires when a primary operation is absorbed into a
	// fallback result.
	OnDegraded func(ev DegradationEvent)
	// OnCircuitOpen, OnCircuitClose and OnCircuitHalfOpen fire on breaker
	// state transitions.
	OnCircuitOpen     func()
	OnCircuitClose    func()
	OnCircuitHalfOpen func()
	// OnPoolExhausted fires when a pool acquisition is rejected.
	OnPoolExhausted func()
	// OnStaleServed fires when a last-known-good cached value is served
	// in place of a failed primary result.
	OnStaleServed func(resource string)
}

// Emit methods tolerate a nil receiver so call sites never need to guard.

func (h *Hooks) emitRetry(attempt int, err *NormalizedError) {
	if h != nil && h.OnRetry != nil {
		h.OnRetry(attempt, err)
	}
}

func (h *Hooks) emitTimeout() {
	if h != nil && h.OnTimeout != nil {
		h.OnTimeout()
	}
}

func (h *Hooks) emitDispatch(waited time.Duration) {
	if h != nil && h.OnDispatch != nil {
		h.OnDispatch(waited)
	}
}

func (h *Hooks) emitCapExhausted(rejected int, resetIn time.Duration) {
	if h != nil && h.OnCapExhausted != nil {
		h.OnCapExhausted(rejected, resetIn)
	}
}

func (h *Hooks) emitDegraded(ev DegradationEvent) {
	if h != nil && h.OnDegraded != nil {
		h.OnDegraded(ev)
	}
}

func (h *Hooks) emitCircuitOpen() {
	if h != nil && h.OnCircuitOpen != nil {
		h.OnCircuitOpen()
	}
}

func (h *Hooks) emitCircuitClose() {
	if h != nil && h.OnCircuitClose != nil {
		h.OnCircuitClose()
	}
}

func (h *Hooks) emitCircuitHalfOpen() {
	if h != nil && h.OnCircuitHalfOpen != nil {
		h.OnCircuitHalfOpen()
	}
}

func (h *Hooks) emitPoolExhausted() {
	if h != nil && h.OnPoolExhausted != nil {
		h.OnPoolExhausted()
	}
}

func (h *Hooks) emitStaleServed(resource string) {
	if h != nil && h.OnStaleServed != nil {
		h.OnStaleServed(resource)
	}
}
