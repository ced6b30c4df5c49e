// Package observability exposes Prometheus metrics for the gateway.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of remote dataset service calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
		},
		[]string{"call"},
	)

	preflightOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preflight_outcomes_total",
			Help: "Preflight volume classifications by outcome.",
		},
		[]string{"outcome"},
	)

	preflightEstimatedRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preflight_estimated_rows",
			Help:    "Total-row estimates produced by preflight counts.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8), // 1e2 to 1e9
		},
	)

	catalogTables = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_tables",
			Help: "Number of tables in the current catalog snapshot.",
		},
	)

	catalogVariables = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_variables",
			Help: "Number of variables in the current catalog snapshot.",
		},
	)

	catalogFetchedAt = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_fetched_timestamp_seconds",
			Help: "Unix time of the last successful catalog refresh.",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(call string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(call).Observe(durationSeconds)
}

func ObservePreflight(outcome string, estimatedRows int64) {
	preflightOutcomes.WithLabelValues(outcome).Inc()
	preflightEstimatedRows.Observe(float64(estimatedRows))
}

func SetCatalogSnapshot(tables, variables int, fetchedUnix int64) {
	catalogTables.Set(float64(tables))
	catalogVariables.Set(float64(variables))
	catalogFetchedAt.Set(float64(fetchedUnix))
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
