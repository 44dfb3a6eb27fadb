// Package metrics provides Prometheus instrumentation for the memory engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the metrics registry. A disabled manager is safe to use and
// records nothing.
type Manager struct {
	registry *prometheus.Registry
	enabled  bool

	ingested        *prometheus.CounterVec
	evictions       *prometheus.CounterVec
	promotions      prometheus.Counter
	merges          prometheus.Counter
	maintenanceRuns prometheus.Counter
	contextBuilds   prometheus.Counter
}

// NewManager creates a metrics manager with its own registry.
func NewManager(enabled bool) *Manager {
	if !enabled {
		return &Manager{enabled: false}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Manager{registry: registry, enabled: true}

	m.ingested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lethe_memories_ingested_total",
			Help: "Total observations ingested, by resulting tier",
		},
		[]string{"tier"},
	)
	m.evictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lethe_memories_evicted_total",
			Help: "Total records removed by retention, by reason",
		},
		[]string{"reason"},
	)
	m.promotions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lethe_consolidation_promotions_total",
		Help: "Working records promoted to the semantic tier",
	})
	m.merges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lethe_consolidation_merges_total",
		Help: "Working records merged into existing semantic records",
	})
	m.maintenanceRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lethe_maintenance_runs_total",
		Help: "Completed consolidation + retention runs",
	})
	m.contextBuilds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lethe_context_builds_total",
		Help: "Context blocks assembled for retrieval",
	})

	registry.MustRegister(m.ingested, m.evictions, m.promotions, m.merges,
		m.maintenanceRuns, m.contextBuilds)
	return m
}

// Enabled reports whether metrics collection is on.
func (m *Manager) Enabled() bool { return m.enabled }

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Manager) Handler() http.Handler {
	if !m.enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordIngest counts an ingested observation.
func (m *Manager) RecordIngest(tier string) {
	if !m.enabled {
		return
	}
	m.ingested.WithLabelValues(tier).Inc()
}

// RecordEviction counts records removed by a retention sub-pass.
func (m *Manager) RecordEviction(reason string, n int) {
	if !m.enabled || n <= 0 {
		return
	}
	m.evictions.WithLabelValues(reason).Add(float64(n))
}

// RecordPromotion counts a working-to-semantic promotion.
func (m *Manager) RecordPromotion() {
	if !m.enabled {
		return
	}
	m.promotions.Inc()
}

// RecordMerge counts a consolidation merge.
func (m *Manager) RecordMerge() {
	if !m.enabled {
		return
	}
	m.merges.Inc()
}

// RecordMaintenance counts a completed maintenance run.
func (m *Manager) RecordMaintenance() {
	if !m.enabled {
		return
	}
	m.maintenanceRuns.Inc()
}

// RecordContextBuild counts an assembled context block.
func (m *Manager) RecordContextBuild() {
	if !m.enabled {
		return
	}
	m.contextBuilds.Inc()
}
