// mpx-sync - Notification-Driven Media Synchronization for mpx
// Copyright 2026 Lullabot
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/Lullabot/mpx-sync

// Package metrics provides Prometheus instrumentation for the
// notification/import pipeline. Metrics are exposed on the admin server's
// /metrics endpoint in Prometheus text format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Notification listener metrics

	NotificationsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_notifications_received_total",
			Help: "Total notifications received from the mpx notification endpoint",
		},
		[]string{"collection"},
	)

	NotificationsDeduplicated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_notifications_deduplicated_total",
			Help: "Notifications dropped as duplicates within one poll batch",
		},
		[]string{"collection"},
	)

	ListenCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_listen_cycles_total",
			Help: "Listener cycles by outcome",
		},
		[]string{"collection", "outcome"}, // "processed", "empty", "error"
	)

	CursorResets = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_cursor_resets_total",
			Help: "Stale-cursor resets performed by the listener",
		},
		[]string{"collection"},
	)

	CursorPosition = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mpx_notification_cursor",
			Help: "Last committed notification id per collection",
		},
		[]string{"collection"},
	)

	// Queue metrics

	ChunksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_chunks_enqueued_total",
			Help: "Import-task chunks published to the durable queue",
		},
		[]string{"collection"},
	)

	ChunksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_chunks_processed_total",
			Help: "Import-task chunks consumed from the durable queue",
		},
		[]string{"collection", "outcome"}, // "ok", "failed", "dropped"
	)

	ChunkSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mpx_chunk_size",
			Help:    "Number of import tasks per enqueued chunk",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		},
	)

	// Object reload / import metrics

	ObjectLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_object_loads_total",
			Help: "Full object reloads by outcome",
		},
		[]string{"collection", "outcome"}, // "ok", "not_found", "error"
	)

	ObjectLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mpx_object_load_duration_seconds",
			Help:    "Duration of single object reload requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	ImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpx_imports_total",
			Help: "Local record imports by outcome",
		},
		[]string{"collection", "outcome"}, // "imported", "missing", "error"
	)

	ImportLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mpx_import_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful import per collection",
		},
		[]string{"collection"},
	)

	// Client metrics

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpx_api_request_duration_seconds",
			Help:    "Duration of mpx API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AdminRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mpx_admin_request_duration_seconds",
			Help:    "Duration of admin HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mpx_circuit_breaker_state",
			Help: "mpx client circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
	)
)

// RecordListenCycle records the outcome of one listener invocation.
func RecordListenCycle(collection, outcome string) {
	ListenCycles.WithLabelValues(collection, outcome).Inc()
}

// RecordCursor updates the committed cursor gauge.
func RecordCursor(collection string, id int64) {
	CursorPosition.WithLabelValues(collection).Set(float64(id))
}

// RecordObjectLoad records one object reload attempt.
func RecordObjectLoad(collection, outcome string, duration time.Duration) {
	ObjectLoads.WithLabelValues(collection, outcome).Inc()
	ObjectLoadDuration.Observe(duration.Seconds())
}

// RecordImport records one import attempt plus the last-success gauge.
func RecordImport(collection, outcome string) {
	ImportsTotal.WithLabelValues(collection, outcome).Inc()
	if outcome != "error" {
		ImportLastSuccess.WithLabelValues(collection).SetToCurrentTime()
	}
}

// RecordAdminRequest records one admin HTTP request.
func RecordAdminRequest(method, path, status string, duration time.Duration) {
	AdminRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
