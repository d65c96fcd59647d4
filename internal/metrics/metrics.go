// Package metrics exposes Prometheus instruments for stage runs and the
// external services the pipeline depends on.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medallion_stage_runs_total",
			Help: "Stage runs by stage, entity and outcome",
		},
		[]string{"stage", "entity", "status"},
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medallion_stage_duration_seconds",
			Help:    "Wall time of a stage run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		},
		[]string{"stage", "entity"},
	)

	rowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medallion_rows_written_total",
			Help: "Items written to a document, by stage and entity",
		},
		[]string{"stage", "entity"},
	)

	externalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medallion_external_calls_total",
			Help: "Calls to the catalog and classification APIs",
		},
		[]string{"service", "status"},
	)

	classificationFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medallion_classification_fallbacks_total",
			Help: "Classification responses replaced by the neutral fallback",
		},
		[]string{"entity"},
	)
)

// ObserveStage records the outcome of one stage run.
func ObserveStage(stage, entity string, started time.Time, rows int, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	stageRunsTotal.WithLabelValues(stage, entity, status).Inc()
	stageDurationSeconds.WithLabelValues(stage, entity).Observe(time.Since(started).Seconds())
	if err == nil {
		rowsWrittenTotal.WithLabelValues(stage, entity).Add(float64(rows))
	}
}

// ExternalCall counts a request to service ("youtube", "classifier").
func ExternalCall(service string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	externalCallsTotal.WithLabelValues(service, status).Inc()
}

func ClassificationFallback(entity string) {
	classificationFallbacksTotal.WithLabelValues(entity).Inc()
}
