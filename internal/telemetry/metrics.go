// Package telemetry provides application-level observability for the article registry.
//
// All metrics are registered against the default Prometheus registry and served on a
// side-channel HTTP server started by main.go:
//
//	GET http://<host>:<ART_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// The endpoint is not part of the Gin router so it never passes through auth or
// rate-limiting middleware and is absent from the public API surface.
//
// HTTP metrics are labelled by the Gin route template (c.FullPath(), e.g.
// /article/fetch/:articleId) rather than the raw URL to keep label cardinality
// bounded regardless of user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestsTotal counts requests by method, route template, and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency by method and route template.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)

	// AuthDenialsTotal counts authorization denials by operation and reason so
	// permission misconfigurations show up without trawling logs.
	AuthDenialsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authorization_denials_total",
			Help: "Total number of denied article/organisation operations",
		},
		[]string{"operation", "reason"},
	)

	// IDAllocationRetriesTotal counts collisions hit by the unique-id allocator,
	// labelled by entity kind. A nonzero rate is expected and harmless; a high
	// rate means the id space is too small.
	IDAllocationRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "id_allocation_retries_total",
			Help: "Total number of id generation retries due to collisions",
		},
		[]string{"kind"},
	)

	// NotificationFailuresTotal counts webhook notification deliveries that failed.
	// Failures never propagate to the triggering request; they only show up here.
	NotificationFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_failures_total",
			Help: "Total number of failed event notification deliveries",
		},
	)

	// UploadsTotal counts object storage uploads by upload type.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Total number of completed file uploads",
		},
		[]string{"upload_type"},
	)

	// DBConnectionsOpen gauges the open connections in the database pool.
	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_open",
			Help: "Current number of open database connections",
		},
	)
)

// StartDBStatsCollector polls the database pool every 30s and exports the open
// connection count. The goroutine runs for the life of the process.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := db.Stats()
			DBConnectionsOpen.Set(float64(stats.OpenConnections))
		}
	}()
	slog.Debug("database stats collector started")
}
