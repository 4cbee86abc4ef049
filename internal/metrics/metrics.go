package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides observability for recommendations, routines and the HTTP API.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Recommendation results by the tier that produced them
	TierHits *prometheus.CounterVec

	// Recommendation cache lookups by result: "hit", "miss"
	CacheLookups *prometheus.CounterVec

	// Routine creations or activations rejected by the single-active rule
	RoutineConflicts prometheus.Counter

	// HTTP request latency by method, route pattern and status
	HTTPDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		TierHits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "klari_recommend_tier_total",
			Help: "Recommendation lookups by the relaxation tier that produced the result",
		}, []string{"tier"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "klari_recommend_cache_lookups_total",
			Help: "Recommendation cache lookups by result",
		}, []string{"result"}),

		RoutineConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "klari_routine_conflicts_total",
			Help: "Routine creations or activations rejected because an active routine of the type exists",
		}),

		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "klari_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
	}
}

// ObserveTier records which tier served a recommendation.
func (m *Metrics) ObserveTier(tier string) {
	if m != nil {
		m.TierHits.WithLabelValues(tier).Inc()
	}
}

// ObserveCache records a recommendation cache hit or miss.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// IncrementRoutineConflict records a rejected duplicate active routine.
func (m *Metrics) IncrementRoutineConflict() {
	if m != nil {
		m.RoutineConflicts.Inc()
	}
}

// ObserveHTTP records the duration of a served request.
func (m *Metrics) ObserveHTTP(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
