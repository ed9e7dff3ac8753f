// StreamSync - Multi-Server Media Library Reconciliation
// Copyright 2026 Apezdr
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/apezdr/streamsync

// Package metrics exposes Prometheus instrumentation for the sync engine:
// run outcomes and durations, catalog fetch behavior, merge activity, and
// the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync run metrics

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_sync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"status"}, // "ok", "partial", "error"
	)

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamsync_sync_duration_seconds",
			Help:    "Wall-clock duration of full sync runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	SyncCoalescedTriggers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_sync_coalesced_triggers_total",
			Help: "Trigger calls that joined an in-flight sync instead of starting one",
		},
	)

	// Catalog fetch metrics

	CatalogFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_catalog_fetches_total",
			Help: "Catalog fetch attempts by server and outcome",
		},
		[]string{"server", "outcome"}, // "ok", "error"
	)

	CatalogFetchRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_catalog_fetch_retries_total",
			Help: "Catalog fetch retry attempts by server",
		},
		[]string{"server"},
	)

	// Merge engine metrics

	FieldsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_fields_updated_total",
			Help: "Canonical fields written by aspect and server",
		},
		[]string{"aspect", "server"},
	)

	MediaCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_media_created_total",
			Help: "Canonical records created by type",
		},
		[]string{"type"}, // "movie", "show"
	)

	MediaPruned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsync_media_pruned_total",
			Help: "Canonical records removed by the pruning pass",
		},
		[]string{"type"},
	)

	MetadataCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_metadata_cache_hits_total",
			Help: "Metadata enrichment cache hits",
		},
	)

	MetadataCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsync_metadata_cache_misses_total",
			Help: "Metadata enrichment cache misses",
		},
	)

	// HTTP metrics

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamsync_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// ObserveSyncRun records one completed run.
func ObserveSyncRun(status string, d time.Duration) {
	SyncRunsTotal.WithLabelValues(status).Inc()
	SyncDuration.Observe(d.Seconds())
}

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(method, path string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}
