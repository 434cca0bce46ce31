package resilience

import "sync/atomic"

// Pool bounds concurrent use of a scarce shared resource, typically a
// connection pool. An exhausted pool produces a POOL_EXHAUSTED failure,
// which is fallback-eligible: the usual chain degrades to a single bounded
// throwaway direct connection instead of queueing indefinitely.
//
// Lock-free via atomic CAS on the slot counter.
type Pool struct {
	name  string
	max   int64
	inUse atomic.Int64
	hooks *Hooks
}

// NewPool creates a pool with max slots for the named resource.
func NewPool(name string, max int, hooks *Hooks) *Pool {
	return &Pool{
		name:  name,
		max:   int64(max),
		hooks: hooks,
	}
}

// Name returns the pooled resource's name.
func (p *Pool) Name() string { return p.name }

// Acquire claims a slot, or returns a POOL_EXHAUSTED error when every slot
// is in use.
func (p *Pool) Acquire() error {
	for {
		cur := p.inUse.Load()
		if cur >= p.max {
			p.hooks.emitPoolExhausted()

			return Errorf(CodePoolExhausted, "no free slot in pool %s", p.name).
				withDetail("pool", p.name).
				withDetail("maxSlots", p.max)
		}

		if p.inUse.CompareAndSwap(cur, cur+1) {
			return nil
		}
	}
}

// Release returns a slot.
func (p *Pool) Release() {
	p.inUse.Add(-1)
}

// Exhausted reports whether every slot is in use.
func (p *Pool) Exhausted() bool {
	return p.inUse.Load() >= p.max
}
