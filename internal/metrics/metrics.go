package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"engine-health-monitor/internal/models"
)

// Metrics records evaluation and HTTP counters on its own registry
type Metrics struct {
	registry      *prometheus.Registry
	evaluations   *prometheus.CounterVec
	ruleFirings   *prometheus.CounterVec
	batteryStatus *prometheus.CounterVec
	assembleTime  prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	sensorErrors  prometheus.Counter
}

// New creates the metric set on a private registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_health_evaluations_total",
			Help: "Assembled health reports by classifier label.",
		}, []string{"label"}),
		ruleFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_health_rule_firings_total",
			Help: "Diagnostic rule firings by affected system.",
		}, []string{"system"}),
		batteryStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_health_battery_status_total",
			Help: "Battery assessments by status.",
		}, []string{"status"}),
		assembleTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_health_assemble_duration_seconds",
			Help:    "Time to assemble one health report.",
			Buckets: prometheus.DefBuckets,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		sensorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_health_sensor_errors_total",
			Help: "Sensor provider reads that failed and fell back to the manual reading.",
		}),
	}
	m.registry.MustRegister(
		m.evaluations,
		m.ruleFirings,
		m.batteryStatus,
		m.assembleTime,
		m.httpRequests,
		m.sensorErrors,
	)
	return m
}

// ObserveReport counts one assembled report
func (m *Metrics) ObserveReport(r models.HealthReport, took time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(string(r.Classifier.PredictedLabel)).Inc()
	m.batteryStatus.WithLabelValues(string(r.Battery.Status)).Inc()
	if !r.Diagnostics.Nominal() {
		for _, sys := range r.Diagnostics.AffectedSystems {
			m.ruleFirings.WithLabelValues(sys).Inc()
		}
	}
	m.assembleTime.Observe(took.Seconds())
}

// ObserveHTTP counts one handled request
func (m *Metrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// SensorError counts a failed provider read
func (m *Metrics) SensorError() {
	if m == nil {
		return
	}
	m.sensorErrors.Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
