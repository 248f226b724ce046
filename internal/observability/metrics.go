// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Upstream metrics
	UpstreamRequests    *prometheus.CounterVec
	UpstreamLatency     *prometheus.HistogramVec
	UpstreamRateLimited *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec

	// Pass metrics
	PassRunsTotal  *prometheus.CounterVec
	PassDuration   *prometheus.HistogramVec
	TokensInserted prometheus.Counter
	TokensRefresh  *prometheus.CounterVec
	TrackedTokens  prometheus.Gauge

	// Analysis metrics
	AnalysisRuns *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Scheduler metrics
	SchedulerRunning   prometheus.Gauge
	LastSuccessfulPass *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_radar"
	}

	return &Metrics{
		UpstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream calls by provider and outcome, retries folded in",
		}, []string{"provider", "outcome"}),
		UpstreamLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "call_latency_seconds",
			Help:      "Upstream call latency including pacing and retries",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		UpstreamRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "rate_limited_total",
			Help:      "Total number of HTTP 429 responses by provider",
		}, []string{"provider"}),
		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache name and result",
		}, []string{"cache", "result"}),

		PassRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "runs_total",
			Help:      "Total number of discovery/refresh passes by status",
		}, []string{"pass", "status"}),
		PassDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "Pass duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"pass"}),
		TokensInserted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "tokens_inserted_total",
			Help:      "Total number of tokens inserted by discovery",
		}),
		TokensRefresh: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "tokens_total",
			Help:      "Refresh outcomes per token",
		}, []string{"outcome"}),
		TrackedTokens: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "tracked_tokens",
			Help:      "Number of tokens currently tracked",
		}),

		AnalysisRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Analyzer runs by analyzer and status",
		}, []string{"analyzer", "status"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		SchedulerRunning: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "running",
			Help:      "1 while the scheduler state is RUNNING",
		}),
		LastSuccessfulPass: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "last_successful_pass_timestamp",
			Help:      "Unix timestamp of the last successful pass",
		}, []string{"pass"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordUpstreamRequest records one logical upstream call.
func RecordUpstreamRequest(provider, outcome string, seconds float64) {
	DefaultMetrics.UpstreamRequests.WithLabelValues(provider, outcome).Inc()
	DefaultMetrics.UpstreamLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordUpstreamRateLimited records a 429 response.
func RecordUpstreamRateLimited(provider string) {
	DefaultMetrics.UpstreamRateLimited.WithLabelValues(provider).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordPass records a discovery or refresh pass.
func RecordPass(pass, status string, durationSeconds float64, finishedUnix int64) {
	DefaultMetrics.PassRunsTotal.WithLabelValues(pass, status).Inc()
	DefaultMetrics.PassDuration.WithLabelValues(pass).Observe(durationSeconds)
	if status == "success" {
		DefaultMetrics.LastSuccessfulPass.WithLabelValues(pass).Set(float64(finishedUnix))
	}
}

// RecordTokenInserted increments the discovery insert counter.
func RecordTokenInserted() {
	DefaultMetrics.TokensInserted.Inc()
}

// RecordRefreshOutcome records what happened to one token during refresh.
func RecordRefreshOutcome(outcome string) {
	DefaultMetrics.TokensRefresh.WithLabelValues(outcome).Inc()
}

// SetTrackedTokens updates the tracked tokens gauge.
func SetTrackedTokens(n int) {
	DefaultMetrics.TrackedTokens.Set(float64(n))
}

// RecordAnalysis records an analyzer run.
func RecordAnalysis(analyzer, status string) {
	DefaultMetrics.AnalysisRuns.WithLabelValues(analyzer, status).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// SetSchedulerRunning updates the scheduler state gauge.
func SetSchedulerRunning(running bool) {
	v := 0.0
	if running {
		v = 1
	}
	DefaultMetrics.SchedulerRunning.Set(v)
}
