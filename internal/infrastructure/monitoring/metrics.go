package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the agent's own Prometheus metrics.
// All methods are safe on a nil receiver so components can run unmetered.
type Metrics struct {
	// HTTP metrics (instrumented application)
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Collector metrics
	CollectorCalls     *prometheus.CounterVec
	CollectorDuration  *prometheus.HistogramVec
	CollectorRedirects prometheus.Counter
	SessionConnected   prometheus.Gauge

	// Transaction metrics
	TransactionsRecorded prometheus.Counter
	TransactionsDropped  *prometheus.CounterVec

	// Harvest metrics
	Harvests       *prometheus.CounterVec
	HarvestSamples prometheus.Histogram

	// Snapshot for logs and status endpoints
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the status endpoint
type Snapshot struct {
	CollectorCalls       int64
	CollectorErrors      int64
	TransactionsRecorded int64
	TransactionsDropped  int64
	LastHarvest          time.Time
}

// NewMetrics registers the agent metrics with reg.
// A nil registerer uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_http_requests_total",
				Help: "Total number of instrumented HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_http_request_duration_seconds",
				Help:    "Instrumented HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		CollectorCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_collector_calls_total",
				Help: "Total number of collector remote method invocations",
			},
			[]string{"method", "outcome"},
		),
		CollectorDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "monitor_collector_call_duration_seconds",
				Help:    "Collector round trip duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method"},
		),
		CollectorRedirects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_collector_redirects_total",
				Help: "Total number of collector host redirects applied",
			},
		),
		SessionConnected: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "monitor_session_connected",
				Help: "1 while the collector session holds a run id",
			},
		),

		TransactionsRecorded: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "monitor_transactions_recorded_total",
				Help: "Total number of ended transactions buffered for harvest",
			},
		),
		TransactionsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_transactions_dropped_total",
				Help: "Total number of transactions dropped before harvest",
			},
			[]string{"reason"},
		),

		Harvests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "monitor_harvests_total",
				Help: "Total number of harvest cycles",
			},
			[]string{"outcome"},
		),
		HarvestSamples: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "monitor_harvest_samples",
				Help:    "Number of transaction samples sent per harvest",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
	}
}

// RecordHTTPRequest records an instrumented HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCollectorCall records one remote method invocation
func (m *Metrics) RecordCollectorCall(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.CollectorCalls.WithLabelValues(method, outcome).Inc()
	m.CollectorDuration.WithLabelValues(method).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.CollectorCalls++
	if outcome != OutcomeSuccess {
		m.snapshot.CollectorErrors++
	}
	m.mu.Unlock()
}

// IncRedirects counts an applied collector redirect
func (m *Metrics) IncRedirects() {
	if m == nil {
		return
	}
	m.CollectorRedirects.Inc()
}

// SetConnected tracks whether the session holds a run id
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.SessionConnected.Set(1)
	} else {
		m.SessionConnected.Set(0)
	}
}

// IncTransactionsRecorded counts a buffered transaction
func (m *Metrics) IncTransactionsRecorded() {
	if m == nil {
		return
	}
	m.TransactionsRecorded.Inc()
	m.mu.Lock()
	m.snapshot.TransactionsRecorded++
	m.mu.Unlock()
}

// IncTransactionsDropped counts a transaction that will never be reported
func (m *Metrics) IncTransactionsDropped(reason string) {
	if m == nil {
		return
	}
	m.TransactionsDropped.WithLabelValues(reason).Inc()
	m.mu.Lock()
	m.snapshot.TransactionsDropped++
	m.mu.Unlock()
}

// RecordHarvest records the outcome of one harvest cycle
func (m *Metrics) RecordHarvest(outcome string, samples int) {
	if m == nil {
		return
	}
	m.Harvests.WithLabelValues(outcome).Inc()
	m.HarvestSamples.Observe(float64(samples))
	m.mu.Lock()
	m.snapshot.LastHarvest = time.Now()
	m.mu.Unlock()
}

// Snapshot returns a copy of the tracked values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
