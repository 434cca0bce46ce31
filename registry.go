package resilience

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

type (
	// ReadinessStatus is the result of checking all registered guards.
	ReadinessStatus struct {
		Resources []ResourceStatus `json:"resources"`
		Ready     bool             `json:"ready"`
	}

	// Registry tracks StatusReporter instances and derives process
	// readiness. It also holds config-loaded resource profiles (see
	// [LoadConfig]) until typed guards are built from them.
	//
	// Pattern: Singleton — DefaultRegistry uses sync.OnceValue for lazy
	// init; explicit registries serve tests and multi-tenant setups.
	Registry struct {
		reporters atomic.Pointer[[]StatusReporter]
		profiles  map[string]ResourceConfig
		mu        sync.Mutex
	}
)

//nolint:gochecknoglobals // singleton via sync.OnceValue
var defaultRegistry = sync.OnceValue(NewRegistry)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}

	var empty []StatusReporter

	r.reporters.Store(&empty)

	return r
}

// DefaultRegistry returns the package-level registry, creating it on first
// call.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// Register adds a reporter. Typically called during startup by NewGuard;
// safe for concurrent use.
func (r *Registry) Register(sr StatusReporter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Copy-on-write so concurrent readiness checks never observe a
	// partially-updated slice.
	old := *r.reporters.Load()
	updated := make([]StatusReporter, len(old), len(old)+1)
	copy(updated, old)
	updated = append(updated, sr)
	r.reporters.Store(&updated)
}

// CheckReadiness gathers every registered resource's status. Ready is false
// when any resource reports SeverityCritical and unhealthy.
func (r *Registry) CheckReadiness() ReadinessStatus {
	reporters := *r.reporters.Load()

	status := ReadinessStatus{
		Ready:     true,
		Resources: make([]ResourceStatus, 0, len(reporters)),
	}

	for _, sr := range reporters {
		rs := sr.Status()
		status.Resources = append(status.Resources, rs)

		if rs.Severity == SeverityCritical && !rs.Healthy {
			status.Ready = false
		}
	}

	return status
}
