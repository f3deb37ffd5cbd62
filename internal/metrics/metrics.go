// Package metrics exposes Prometheus instruments for the card pipeline.
// A nil *Manager is valid and records nothing, so components can take one optionally.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "careercards"

type Manager struct {
	registry *prometheus.Registry

	inferenceAttempts *prometheus.CounterVec
	inferenceResults  *prometheus.CounterVec
	inferenceLatency  prometheus.Histogram

	extractionFailures *prometheus.CounterVec
	fallbacks          *prometheus.CounterVec

	entitiesAdded      *prometheus.CounterVec
	entitiesDuplicate  prometheus.Counter
	persistenceErrors  prometheus.Counter
	resolverMatchRate  prometheus.Gauge
	resolverMatchKinds *prometheus.CounterVec

	jobs *prometheus.CounterVec
}

// NewManager registers every instrument on a private registry.
func NewManager() *Manager {
	m := &Manager{registry: prometheus.NewRegistry()}

	m.inferenceAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "inference", Name: "attempts_total",
		Help: "Outbound inference attempts by outcome kind.",
	}, []string{"outcome"})
	m.inferenceResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "inference", Name: "requests_total",
		Help: "Logical inference requests by final result.",
	}, []string{"result"})
	m.inferenceLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "inference", Name: "request_seconds",
		Help:    "Wall time of a logical inference request including retries.",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
	})
	m.extractionFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "pipeline", Name: "payload_failures_total",
		Help: "Payload extraction or schema failures by endpoint and kind.",
	}, []string{"endpoint", "kind"})
	m.fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "pipeline", Name: "fallbacks_total",
		Help: "Fallback payloads synthesized by endpoint.",
	}, []string{"endpoint"})
	m.entitiesAdded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "entities_added_total",
		Help: "Entities accepted into a session by source kind.",
	}, []string{"source"})
	m.entitiesDuplicate = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "entities_duplicate_total",
		Help: "Incoming entities dropped as duplicates.",
	})
	m.persistenceErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "session", Name: "persistence_errors_total",
		Help: "Failed snapshot writes.",
	})
	m.resolverMatchRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "last_match_rate",
		Help: "Match rate of the most recent resolution.",
	})
	m.resolverMatchKinds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "resolver", Name: "matches_total",
		Help: "Resolved names by match kind.",
	}, []string{"kind"})
	m.jobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "worker", Name: "jobs_total",
		Help: "Jobs handled by kind and status.",
	}, []string{"kind", "status"})

	m.registry.MustRegister(
		m.inferenceAttempts, m.inferenceResults, m.inferenceLatency,
		m.extractionFailures, m.fallbacks,
		m.entitiesAdded, m.entitiesDuplicate, m.persistenceErrors,
		m.resolverMatchRate, m.resolverMatchKinds,
		m.jobs,
	)
	return m
}

func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) InferenceAttempt(outcome string) {
	if m == nil {
		return
	}
	m.inferenceAttempts.WithLabelValues(outcome).Inc()
}

func (m *Manager) InferenceResult(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.inferenceResults.WithLabelValues(result).Inc()
	m.inferenceLatency.Observe(elapsed.Seconds())
}

func (m *Manager) PayloadFailure(endpoint, kind string) {
	if m == nil {
		return
	}
	m.extractionFailures.WithLabelValues(endpoint, kind).Inc()
}

func (m *Manager) Fallback(endpoint string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(endpoint).Inc()
}

func (m *Manager) EntitiesAdded(source string, added, duplicates int) {
	if m == nil {
		return
	}
	m.entitiesAdded.WithLabelValues(source).Add(float64(added))
	m.entitiesDuplicate.Add(float64(duplicates))
}

func (m *Manager) PersistenceError() {
	if m == nil {
		return
	}
	m.persistenceErrors.Inc()
}

func (m *Manager) Resolution(rate float64, kinds map[string]int) {
	if m == nil {
		return
	}
	m.resolverMatchRate.Set(rate)
	for k, n := range kinds {
		m.resolverMatchKinds.WithLabelValues(k).Add(float64(n))
	}
}

func (m *Manager) Job(kind, status string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, status).Inc()
}
