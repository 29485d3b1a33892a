// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package metrics provides Prometheus instrumentation for the pipeline:
// event consumption and outcomes, processing-step latency, store conflicts,
// ledger writes, and notification publishing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics
	EventsConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conveyor_events_consumed_total",
			Help: "Total number of storage events received from the event source",
		},
	)

	EventOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conveyor_event_outcomes_total",
			Help: "Per-event pipeline outcomes by action and reason",
		},
		[]string{"action", "reason"}, // action: ack, release; reason: applied, duplicate, noop, malformed, step_failed, conflict, store_error, timeout
	)

	EventsDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conveyor_events_deduplicated_total",
			Help: "Total number of events short-circuited by the idempotency ledger",
		},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conveyor_batch_size",
			Help:    "Number of events per processed batch",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "conveyor_batch_duration_seconds",
			Help:    "Duration of full batch processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Processing step metrics
	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conveyor_step_duration_seconds",
			Help:    "Duration of processing step execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step", "outcome"}, // outcome: success, failure, timeout
	)

	// Store metrics
	StoreConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conveyor_store_version_conflicts_total",
			Help: "Total number of version-guarded writes rejected as stale",
		},
	)

	LedgerWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conveyor_ledger_writes_total",
			Help: "Total number of idempotency ledger entries written",
		},
	)

	// Notification metrics
	NotificationsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conveyor_notifications_published_total",
			Help: "Total number of state-change notifications published",
		},
	)

	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conveyor_notification_failures_total",
			Help: "Total number of failed notification publishes (logged, never blocks ack)",
		},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conveyor_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)
)

// RecordEventConsumed increments the consumed-event counter.
func RecordEventConsumed() {
	EventsConsumed.Inc()
}

// RecordEventOutcome records a per-event pipeline outcome.
func RecordEventOutcome(action, reason string) {
	EventOutcomes.WithLabelValues(action, reason).Inc()
}

// RecordEventDeduplicated increments the ledger-hit counter.
func RecordEventDeduplicated() {
	EventsDeduplicated.Inc()
}

// RecordBatch observes one processed batch.
func RecordBatch(size int, duration time.Duration) {
	BatchSize.Observe(float64(size))
	BatchDuration.Observe(duration.Seconds())
}

// RecordStepDuration observes one processing step execution.
func RecordStepDuration(step, outcome string, duration time.Duration) {
	StepDuration.WithLabelValues(step, outcome).Observe(duration.Seconds())
}

// RecordStoreConflict increments the version-conflict counter.
func RecordStoreConflict() {
	StoreConflicts.Inc()
}

// RecordLedgerWrite increments the ledger-write counter.
func RecordLedgerWrite() {
	LedgerWrites.Inc()
}

// RecordNotificationPublished increments the publish counter.
func RecordNotificationPublished() {
	NotificationsPublished.Inc()
}

// RecordNotificationFailure increments the publish-failure counter.
func RecordNotificationFailure() {
	NotificationFailures.Inc()
}
