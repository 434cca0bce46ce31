// Package promx exposes resilience lifecycle events and queue state as
// Prometheus metrics. Hooks feed counters; queues are scraped through a
// collector so gauges are always current without polling goroutines.
package promx

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	resilience "github.com/Realm-101/RepoRadar-sub012"
)

// Metrics holds the counter families shared by every instrumented resource.
// Create one Metrics per registry and derive per-resource Hooks from it.
type Metrics struct {
	retries      *prometheus.CounterVec
	timeouts     *prometheus.CounterVec
	dispatches   *prometheus.CounterVec
	capRejects   *prometheus.CounterVec
	degradations *prometheus.CounterVec
	circuitOpens *prometheus.CounterVec
	poolRejects  *prometheus.CounterVec
	staleServes  *prometheus.CounterVec
	queueWait    *prometheus.HistogramVec
}

// NewMetrics creates the metric families and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_retries_total",
			Help: "Retries performed, by resource and failure code.",
		}, []string{"resource", "code"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_timeouts_total",
			Help: "Operations that exceeded their time budget.",
		}, []string{"resource"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_queue_dispatches_total",
			Help: "Requests dispatched from the rate-limited queue.",
		}, []string{"resource"}),
		capRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_queue_cap_rejections_total",
			Help: "Requests rejected because the daily cap was spent.",
		}, []string{"resource"}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_degradations_total",
			Help: "Fallback results served, by resource and failure code.",
		}, []string{"resource", "code"}),
		circuitOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_circuit_opens_total",
			Help: "Circuit breaker open transitions.",
		}, []string{"resource"}),
		poolRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_pool_rejections_total",
			Help: "Pool acquisitions rejected for lack of slots.",
		}, []string{"resource"}),
		staleServes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "resilience_stale_served_total",
			Help: "Stale cached results served in place of failures.",
		}, []string{"resource"}),
		queueWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "resilience_queue_wait_seconds",
			Help:    "Time requests spent waiting in the queue.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"resource"}),
	}

	reg.MustRegister(
		m.retries, m.timeouts, m.dispatches, m.capRejects,
		m.degradations, m.circuitOpens, m.poolRejects, m.staleServes,
		m.queueWait,
	)

	return m
}

// Hooks returns lifecycle hooks that feed this Metrics for one resource.
func (m *Metrics) Hooks(resource string) *resilience.Hooks {
	return &resilience.Hooks{
		OnRetry: func(_ int, err *resilience.NormalizedError) {
			m.retries.WithLabelValues(resource, string(err.Code)).Inc()
		},
		OnTimeout: func() {
			m.timeouts.WithLabelValues(resource).Inc()
		},
		OnDispatch: func(waited time.Duration) {
			m.dispatches.WithLabelValues(resource).Inc()
			m.queueWait.WithLabelValues(resource).Observe(waited.Seconds())
		},
		OnCapExhausted: func(rejected int, _ time.Duration) {
			m.capRejects.WithLabelValues(resource).Add(float64(rejected))
		},
		OnDegraded: func(ev resilience.DegradationEvent) {
			m.degradations.WithLabelValues(resource, string(ev.Code)).Inc()
		},
		OnCircuitOpen: func() {
			m.circuitOpens.WithLabelValues(resource).Inc()
		},
		OnPoolExhausted: func() {
			m.poolRejects.WithLabelValues(resource).Inc()
		},
		OnStaleServed: func(staleResource string) {
			m.staleServes.WithLabelValues(staleResource).Inc()
		},
	}
}

// queueCollector scrapes a queue's status snapshot on collection.
type queueCollector struct {
	status func() resilience.QueueStatus

	length    *prometheus.Desc
	remaining *prometheus.Desc
	used      *prometheus.Desc
}

// NewQueueCollector returns a prometheus.Collector exposing the queue's
// length and quota consumption. Register it alongside NewMetrics.
func NewQueueCollector(resource string, status func() resilience.QueueStatus) prometheus.Collector {
	labels := prometheus.Labels{"resource": resource}

	return &queueCollector{
		status: status,
		length: prometheus.NewDesc(
			"resilience_queue_length",
			"Requests currently waiting in the queue.",
			nil, labels,
		),
		remaining: prometheus.NewDesc(
			"resilience_queue_quota_remaining",
			"Successful dispatches left in the current window.",
			nil, labels,
		),
		used: prometheus.NewDesc(
			"resilience_queue_quota_used",
			"Successful dispatches consumed in the current window.",
			nil, labels,
		),
	}
}

func (c *queueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.length
	ch <- c.remaining
	ch <- c.used
}

func (c *queueCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.status()

	ch <- prometheus.MustNewConstMetric(c.length, prometheus.GaugeValue, float64(st.QueueLength))
	ch <- prometheus.MustNewConstMetric(c.remaining, prometheus.GaugeValue, float64(st.RemainingToday))
	ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(st.RequestsToday))
}
