// Package telemetry bridges the service observability hooks to Prometheus.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"cladecore/internal/core"
)

var _ core.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)

// PrometheusMetricsRecorder counts operation outcomes and observes their
// durations on a Prometheus registry.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the collectors with reg and
// returns the recorder. A nil registerer falls back to the default
// registry.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusMetricsRecorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cladecore_operations_total",
			Help: "Total service operations by outcome",
		}, []string{"operation", "result"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cladecore_operation_duration_seconds",
			Help:    "Duration of service operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

// Observe records one operation outcome. Empty operation names are ignored,
// matching the expvar recorder.
func (r *PrometheusMetricsRecorder) Observe(operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	result := core.AuditStatusError
	if success {
		result = core.AuditStatusSuccess
	}
	r.operations.WithLabelValues(operation, result).Inc()
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
}
