package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the Prometheus-compatible instrumentation of a running
// engine: inflight exec-paths, pend work-baskets, step latency,
// ticket raises, and sanitizer repairs.
//
// All metrics are namespaced "caseflow_".
type Metrics struct {
	inflightExecPaths prometheus.Gauge
	pendByBasket      *prometheus.GaugeVec
	stepLatency       *prometheus.HistogramVec
	ticketsRaised     *prometheus.CounterVec
	sanitizerRepairs  prometheus.Counter
	eventsTotal       *prometheus.CounterVec
	poolCallerRuns    prometheus.Counter

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics creates and registers every engine metric against registry.
// Pass prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() for test isolation.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	f := promauto.With(registry)

	return &Metrics{
		enabled: true,

		inflightExecPaths: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "caseflow",
			Name:      "inflight_exec_paths",
			Help:      "Current number of exec-paths actively dispatching a step",
		}),
		pendByBasket: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "caseflow",
			Name:      "pend_exec_paths",
			Help:      "Current number of exec-paths pended, by work basket",
		}, []string{"work_basket"}),
		stepLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "caseflow",
			Name:      "step_latency_ms",
			Help:      "Step dispatch duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"step_name", "kind", "response_type"}),
		ticketsRaised: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "tickets_raised_total",
			Help:      "Tickets raised, labeled by whether they were adopted or dropped",
		}, []string{"ticket", "outcome"}),
		sanitizerRepairs: f.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "sanitizer_repairs_total",
			Help:      "Cases whose loaded state required at least one sanitizer repair",
		}),
		eventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "lifecycle_events_total",
			Help:      "Lifecycle events fired to the event handler, by type",
		}, []string{"event_type"}),
		poolCallerRuns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "caseflow",
			Name:      "pool_caller_runs_total",
			Help:      "Fork/join submissions that ran on the caller goroutine due to a full worker pool",
		}),
	}
}

func (m *Metrics) ObserveStepLatency(stepName string, kind StepKind, rt ResponseType, ms float64) {
	if m == nil || !m.enabled {
		return
	}
	m.stepLatency.WithLabelValues(stepName, string(kind), string(rt)).Observe(ms)
}

func (m *Metrics) SetInflightExecPaths(n int) {
	if m == nil || !m.enabled {
		return
	}
	m.inflightExecPaths.Set(float64(n))
}

func (m *Metrics) SetPendByBasket(basket string, n int) {
	if m == nil || !m.enabled {
		return
	}
	m.pendByBasket.WithLabelValues(basket).Set(float64(n))
}

func (m *Metrics) ObserveTicket(ticket string, adopted bool) {
	if m == nil || !m.enabled {
		return
	}
	outcome := "dropped"
	if adopted {
		outcome = "adopted"
	}
	m.ticketsRaised.WithLabelValues(ticket, outcome).Inc()
}

func (m *Metrics) ObserveSanitizerRepair() {
	if m == nil || !m.enabled {
		return
	}
	m.sanitizerRepairs.Inc()
}

func (m *Metrics) ObserveEvent(eventType EventType) {
	if m == nil || !m.enabled {
		return
	}
	m.eventsTotal.WithLabelValues(string(eventType)).Inc()
}

func (m *Metrics) ObserveCallerRuns() {
	if m == nil || !m.enabled {
		return
	}
	m.poolCallerRuns.Inc()
}

// Disable/Enable toggle recording without unregistering the
// collectors, useful for test isolation.
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
