// Package metrics defines the Prometheus metrics for the capture service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the mic capture service
type Metrics struct {
	// Session lifecycle metrics
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    prometheus.Counter
	ActiveSessions    prometheus.Gauge
	ElapsedSeconds    prometheus.Gauge
	SessionDuration   prometheus.Histogram

	// Capture pipeline metrics
	BlocksReceived  prometheus.Counter
	BlocksDiscarded prometheus.Counter
	ArtifactBytes   prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics on the given registerer. Tests use a
// fresh registry to avoid duplicate registration.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "micrec_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "micrec_sessions_completed_total",
			Help: "Total number of recording sessions finalized successfully",
		}),
		SessionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "micrec_sessions_failed_total",
			Help: "Total number of recording sessions that ended in failure",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "micrec_active_sessions",
			Help: "Whether a recording session is currently active (0 or 1)",
		}),
		ElapsedSeconds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "micrec_session_elapsed_seconds",
			Help: "Elapsed recording time of the active session",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "micrec_session_duration_seconds",
			Help:    "Final duration of finalized recording sessions",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),

		BlocksReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "micrec_blocks_received_total",
			Help: "Total number of sample blocks accepted into a capture buffer",
		}),
		BlocksDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "micrec_blocks_discarded_total",
			Help: "Total number of sample blocks discarded (paused or finalizing)",
		}),
		ArtifactBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "micrec_artifact_bytes",
			Help:    "Size of finalized recording artifacts in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "micrec_http_requests_total",
			Help: "Total number of HTTP API requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "micrec_http_request_duration_seconds",
			Help:    "HTTP API request duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "micrec_http_errors_total",
			Help: "Total number of HTTP API error responses",
		}, []string{"method", "endpoint", "type"}),
	}
}

// RecordHTTPRequest records one handled HTTP request.
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordHTTPError records one HTTP error response.
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
