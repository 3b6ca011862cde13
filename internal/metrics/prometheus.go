package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder exports application events as Prometheus metrics.
type PrometheusRecorder struct {
	queries           *prometheus.CounterVec
	recommendations   *prometheus.CounterVec
	counterIncrements *prometheus.CounterVec
	identityCache     *prometheus.CounterVec
	reconcileRuns     prometheus.Counter
	reconcileFixed    prometheus.Counter
	reconcileDuration prometheus.Histogram
}

// NewPrometheus creates a recorder and registers its collectors on reg.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpick_queries_total",
			Help: "Queries created and deleted",
		}, []string{"op"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpick_recommendations_total",
			Help: "Recommendations created and deleted",
		}, []string{"op"}),
		counterIncrements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpick_recommendation_count_increments_total",
			Help: "Changes applied to query recommendationCount by source",
		}, []string{"source"}),
		identityCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "smartpick_identity_cache_total",
			Help: "Identity cache lookups by result",
		}, []string{"result"}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartpick_reconcile_runs_total",
			Help: "Completed reconciler passes",
		}),
		reconcileFixed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "smartpick_reconcile_corrected_total",
			Help: "Queries whose recommendationCount was corrected",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "smartpick_reconcile_duration_seconds",
			Help:    "Reconciler pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		r.queries,
		r.recommendations,
		r.counterIncrements,
		r.identityCache,
		r.reconcileRuns,
		r.reconcileFixed,
		r.reconcileDuration,
	)
	return r
}

// IncQueryCreated increments the created query counter.
func (r *PrometheusRecorder) IncQueryCreated() {
	r.queries.WithLabelValues("created").Inc()
}

// IncQueryDeleted increments the deleted query counter.
func (r *PrometheusRecorder) IncQueryDeleted() {
	r.queries.WithLabelValues("deleted").Inc()
}

// IncRecommendationCreated increments the created recommendation counter.
func (r *PrometheusRecorder) IncRecommendationCreated() {
	r.recommendations.WithLabelValues("created").Inc()
}

// IncRecommendationDeleted increments the deleted recommendation counter.
func (r *PrometheusRecorder) IncRecommendationDeleted() {
	r.recommendations.WithLabelValues("deleted").Inc()
}

// IncCounterIncrement counts a recommendationCount change by source.
func (r *PrometheusRecorder) IncCounterIncrement(source string) {
	r.counterIncrements.WithLabelValues(source).Inc()
}

// IncIdentityCacheHit increments cache hit counter.
func (r *PrometheusRecorder) IncIdentityCacheHit() {
	r.identityCache.WithLabelValues("hit").Inc()
}

// IncIdentityCacheMiss increments cache miss counter.
func (r *PrometheusRecorder) IncIdentityCacheMiss() {
	r.identityCache.WithLabelValues("miss").Inc()
}

// ObserveReconcile records a reconciler pass.
func (r *PrometheusRecorder) ObserveReconcile(corrected int, duration time.Duration) {
	r.reconcileRuns.Inc()
	r.reconcileFixed.Add(float64(corrected))
	r.reconcileDuration.Observe(duration.Seconds())
}
