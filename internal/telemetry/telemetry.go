// Package telemetry exports engine counters to Prometheus. Served by the
// API router at /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EvaluationsTotal counts deviation evaluations by metric type.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miya_evaluations_total",
			Help: "Total deviation evaluations run",
		},
		[]string{"metric_type"},
	)

	// InsufficientDataTotal counts evaluations skipped for lack of coverage.
	InsufficientDataTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miya_insufficient_data_total",
			Help: "Evaluations skipped due to insufficient window coverage",
		},
		[]string{"metric_type"},
	)

	// SuppressedDaysTotal counts adverse days neutralized by exercise.
	SuppressedDaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miya_suppressed_days_total",
			Help: "Adverse days suppressed by qualifying exercise",
		},
		[]string{"metric_type"},
	)

	// EpisodeTransitionsTotal counts state machine transitions by kind.
	EpisodeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miya_episode_transitions_total",
			Help: "Alert episode transitions applied",
		},
		[]string{"pattern_type", "kind"},
	)

	// NotificationsEnqueuedTotal counts tasks created by the dispatcher.
	NotificationsEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "miya_notifications_enqueued_total",
			Help: "Notification tasks enqueued",
		},
	)

	// NotificationsByOutcome counts delivery outcomes.
	NotificationsByOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miya_notifications_delivered_total",
			Help: "Notification delivery outcomes",
		},
		[]string{"outcome"}, // sent | skipped | failed | expired
	)

	// DrainDuration observes delivery batch latency.
	DrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "miya_drain_duration_seconds",
			Help:    "Notification drain cycle duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// EvaluateConflictsTotal counts lost optimistic-concurrency races.
	EvaluateConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "miya_evaluate_conflicts_total",
			Help: "Episode advancement retries due to concurrent writers",
		},
	)
)
