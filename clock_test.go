package resilience

import (
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Test helpers: controllable clocks shared by the retry/timeout/queue tests
// ---------------------------------------------------------------------------

// fakeTimer is a controllable timer.
type fakeTimer struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{ch: make(chan time.Time, 1)}
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	was := !t.stopped
	t.stopped = true

	return was
}

func (t *fakeTimer) Reset(time.Duration) bool { return false }

func (t *fakeTimer) wasStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped
}

func (t *fakeTimer) fire() { t.ch <- time.Now() }

// immediateClock fires every timer at once and records the requested
// durations, so backoff sleeps become observable without waiting.
type immediateClock struct {
	mu        sync.Mutex
	durations []time.Duration
}

func newImmediateClock() *immediateClock { return &immediateClock{} }

func (c *immediateClock) Now() time.Time                  { return time.Now() }
func (c *immediateClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (c *immediateClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	c.durations = append(c.durations, d)
	c.mu.Unlock()

	t := newFakeTimer()
	t.fire()

	return t
}

func (c *immediateClock) getDurations() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]time.Duration, len(c.durations))
	copy(out, c.durations)

	return out
}

// manualClock hands out timers that fire only when the test says so.
type manualClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func newManualClock() *manualClock { return &manualClock{} }

func (c *manualClock) Now() time.Time                  { return time.Now() }
func (c *manualClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (c *manualClock) NewTimer(time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := newFakeTimer()
	c.timers = append(c.timers, t)

	return t
}

func (c *manualClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.timers)
}

func (c *manualClock) timer(i int) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.timers[i]
}

// ---------------------------------------------------------------------------
// RealClock
// ---------------------------------------------------------------------------

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Fatalf("Now() = %v, want between %v and %v", got, before, after)
	}
}

func TestRealClockSince(t *testing.T) {
	c := RealClock{}
	start := c.Now()

	time.Sleep(1 * time.Millisecond)

	if elapsed := c.Since(start); elapsed <= 0 {
		t.Fatalf("Since() = %v, want > 0", elapsed)
	}
}

func TestRealClockNewTimerFires(t *testing.T) {
	c := RealClock{}
	tmr := c.NewTimer(10 * time.Millisecond)

	select {
	case ts := <-tmr.C():
		if ts.IsZero() {
			t.Fatal("timer fired with zero time")
		}
	case <-time.After(1 * time.Second):
		t.Fatal("timer did not fire within 1s")
	}
}

func TestRealClockNewTimerStop(t *testing.T) {
	c := RealClock{}
	tmr := c.NewTimer(1 * time.Hour)

	if !tmr.Stop() {
		t.Fatal("Stop() = false, want true for unfired timer")
	}
}

func TestRealClockNewTimerReset(t *testing.T) {
	c := RealClock{}
	tmr := c.NewTimer(1 * time.Hour)
	tmr.Stop()
	tmr.Reset(10 * time.Millisecond)

	select {
	case <-tmr.C():
	case <-time.After(1 * time.Second):
		t.Fatal("timer did not fire after Reset within 1s")
	}
}

// Compile-time proof that the fakes satisfy the interfaces.
func TestFakeClocksSatisfyInterfaces(t *testing.T) {
	var _ Clock = (*immediateClock)(nil)
	var _ Clock = (*manualClock)(nil)
	var _ Timer = (*fakeTimer)(nil)
}
