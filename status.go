package resilience

// ---------------------------------------------------------------------------
// Status reporting
// ---------------------------------------------------------------------------

type (
	// StatusReporter is implemented by every Guard[T]. The interface is
	// non-generic so guards with different type parameters report
	// through one registry.
	StatusReporter interface {
		// Resource returns the protected resource's name.
		Resource() string
		// Status returns the resource's current state.
		Status() ResourceStatus
	}

	// Severity grades how a degraded stage affects readiness.
	Severity int

	// ResourceStatus is the current state of one guarded resource.
	ResourceStatus struct {
		Resource string       `json:"resource"`
		State    string       `json:"state"`
		Queue    *QueueStatus `json:"queue,omitempty"`
		Severity Severity     `json:"severity"`
		Healthy  bool         `json:"healthy"`
	}
)

const (
	// SeverityNone means nothing is impaired.
	SeverityNone Severity = iota
	// SeverityDegraded means the resource still serves but is impaired.
	SeverityDegraded
	// SeverityCritical means the resource cannot reliably serve.
	SeverityCritical
)

// String returns the severity as a human-readable label.
func (s Severity) String() string {
	switch s {
	case SeverityDegraded:
		return "degraded"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// Status derives the guard's current state from its stateful stages. This is
// the queue's status() observability surface widened to the whole guard.
func (g *Guard[T]) Status() ResourceStatus {
	status := ResourceStatus{
		Resource: g.resource,
		State:    "healthy",
		Healthy:  true,
	}

	// Open breaker: the resource is down right now.
	if g.breaker != nil {
		switch g.breaker.State() {
		case "open":
			status.Healthy = false
			status.Severity = SeverityCritical
			status.State = "circuit_open"
		case "half_open":
			// Recovering; still serving probes.
			status.State = "circuit_half_open"
		default:
		}
	}

	// Spent daily cap: degraded, not down — bypassed and fallback paths
	// still serve.
	if g.queueStatus != nil {
		qs := g.queueStatus()
		status.Queue = &qs

		if qs.DailyCap > 0 && qs.RemainingToday == 0 {
			if status.Severity < SeverityDegraded {
				status.Severity = SeverityDegraded
			}

			if status.Healthy && status.State == "healthy" {
				status.State = "daily_cap_exhausted"
			}
		}
	}

	if g.pool != nil && g.pool.Exhausted() {
		if status.Severity < SeverityDegraded {
			status.Severity = SeverityDegraded
		}

		if status.Healthy && status.State == "healthy" {
			status.State = "pool_exhausted"
		}
	}

	return status
}
