// Package metrics provides Prometheus metrics recording for the ingestion
// and analysis pipeline. This package exists to avoid import cycles between
// the service and middleware packages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// spansIngested tracks spans accepted through the ingest endpoint
	spansIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_spans_ingested_total",
			Help: "Total number of spans accepted for ingestion",
		},
		[]string{"environment"},
	)

	// quotaRejections tracks requests rejected by the daily quota
	quotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lumina_quota_rejections_total",
			Help: "Total number of ingest requests rejected by the daily quota",
		},
	)

	// alertsCreated tracks alerts persisted by the detector
	alertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"type", "severity"},
	)

	// alertDispatches tracks webhook delivery outcomes
	alertDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_alert_dispatches_total",
			Help: "Total number of alert webhook dispatch attempts",
		},
		[]string{"outcome"},
	)

	// baselineSweepDuration tracks baseline sweep duration in seconds
	baselineSweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lumina_baseline_sweep_duration_seconds",
			Help:    "Baseline sweep duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"window"},
	)

	// baselineEndpoints tracks per-sweep endpoint outcomes
	baselineEndpoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_baseline_endpoints_total",
			Help: "Total number of endpoints processed by baseline sweeps",
		},
		[]string{"window", "outcome"},
	)

	// semanticScorerCalls tracks semantic scorer invocations
	semanticScorerCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_semantic_scorer_calls_total",
			Help: "Total number of semantic scorer invocations",
		},
		[]string{"outcome"},
	)

	// optionalInfraFailures tracks degraded optional dependencies
	optionalInfraFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lumina_optional_infra_failures_total",
			Help: "Total number of optional dependency failures absorbed by the pipeline",
		},
		[]string{"dependency"},
	)

	// retentionDeleted tracks traces removed by the retention job
	retentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lumina_retention_deleted_total",
			Help: "Total number of traces deleted by the retention job",
		},
	)
)

// RecordSpansIngested records accepted spans by environment
func RecordSpansIngested(environment string, count int) {
	spansIngested.WithLabelValues(environment).Add(float64(count))
}

// RecordQuotaRejection records a quota rejection
func RecordQuotaRejection() {
	quotaRejections.Inc()
}

// RecordAlertCreated records a persisted alert
func RecordAlertCreated(alertType, severity string) {
	alertsCreated.WithLabelValues(alertType, severity).Inc()
}

// RecordAlertDispatch records a webhook dispatch outcome
func RecordAlertDispatch(outcome string) {
	alertDispatches.WithLabelValues(outcome).Inc()
}

// RecordBaselineSweep records a completed baseline sweep
func RecordBaselineSweep(window string, duration time.Duration, updated, skipped, errors int) {
	baselineSweepDuration.WithLabelValues(window).Observe(duration.Seconds())
	baselineEndpoints.WithLabelValues(window, "updated").Add(float64(updated))
	baselineEndpoints.WithLabelValues(window, "skipped").Add(float64(skipped))
	baselineEndpoints.WithLabelValues(window, "error").Add(float64(errors))
}

// RecordSemanticScorerCall records a semantic scorer invocation outcome
func RecordSemanticScorerCall(outcome string) {
	semanticScorerCalls.WithLabelValues(outcome).Inc()
}

// RecordOptionalInfraFailure records an absorbed optional dependency failure
func RecordOptionalInfraFailure(dependency string) {
	optionalInfraFailures.WithLabelValues(dependency).Inc()
}

// RecordRetentionDeleted records traces removed by the retention job
func RecordRetentionDeleted(count int64) {
	retentionDeleted.Add(float64(count))
}
