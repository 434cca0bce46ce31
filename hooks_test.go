package resilience

import (
	"testing"
	"time"
)

// A nil *Hooks must be safe to emit through everywhere.
func TestHooksNilReceiver(t *testing.T) {
	var h *Hooks

	h.emitRetry(1, nil)
	h.emitTimeout()
	h.emitDispatch(time.Second)
	h.emitCapExhausted(3, time.Minute)
	h.emitDegraded(DegradationEvent{})
	h.emitCircuitOpen()
	h.emitCircuitClose()
	h.emitCircuitHalfOpen()
	h.emitPoolExhausted()
	h.emitStaleServed("cache")
}

// Partially populated hooks fire only the set callbacks.
func TestHooksPartial(t *testing.T) {
	var retries int

	h := &Hooks{
		OnRetry: func(int, *NormalizedError) { retries++ },
	}

	h.emitRetry(1, nil)
	h.emitTimeout()
	h.emitDegraded(DegradationEvent{})

	if retries != 1 {
		t.Fatalf("OnRetry fired %d times, want 1", retries)
	}
}
