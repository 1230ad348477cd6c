package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for Flightdeck
type MetricsRegistry struct {
	// HTTP Metrics
	HTTPRequestsTotal    prometheus.CounterVec
	HTTPRequestDuration  prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.GaugeVec

	// Cache Metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec
	CacheWriteErrors prometheus.CounterVec

	// Upstream Metrics
	UpstreamRequestsTotal   prometheus.CounterVec
	UpstreamRequestDuration prometheus.HistogramVec

	// Import Metrics
	ImportRunsTotal    prometheus.CounterVec
	ImportRecordsTotal prometheus.CounterVec
	ImportRunDuration  prometheus.Histogram

	// Business Metrics
	FlightSearchesTotal prometheus.CounterVec
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		HTTPRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		HTTPRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightdeck_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		HTTPRequestsInFlight: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flightdeck_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),

		CacheHitsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_cache_hits_total",
				Help: "Cache hits by layer (fast, durable)",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_cache_misses_total",
				Help: "Cache misses by layer (fast, durable)",
			},
			[]string{"layer"},
		),
		CacheWriteErrors: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_cache_write_errors_total",
				Help: "Cache write failures by cause (serialize, connectivity)",
			},
			[]string{"cause"},
		),

		UpstreamRequestsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_upstream_requests_total",
				Help: "Upstream API requests by service and outcome",
			},
			[]string{"service", "outcome"},
		),
		UpstreamRequestDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flightdeck_upstream_request_duration_seconds",
				Help:    "Upstream API request latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),

		ImportRunsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_import_runs_total",
				Help: "Import pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		ImportRecordsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_import_records_total",
				Help: "Airport records processed by import runs, by result",
			},
			[]string{"result"},
		),
		ImportRunDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flightdeck_import_run_duration_seconds",
				Help:    "Import pipeline run duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),

		FlightSearchesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flightdeck_flight_searches_total",
				Help: "Flight searches by outcome",
			},
			[]string{"outcome"},
		),
	}
}
