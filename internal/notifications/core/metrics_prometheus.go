package core

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"superiorweather/internal/types"
)

var _ NotificationMetrics = (*PrometheusMetrics)(nil)

// PrometheusMetrics records the same series as CloudWatchNotificationMetrics
// on a private registry scraped through Handler.
type PrometheusMetrics struct {
	registry  *prometheus.Registry
	scheduled *prometheus.CounterVec
	delivered *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	alerts    prometheus.Histogram
	requests  *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the collectors under namespace (lowercased
// metric prefix, e.g. "superiorweather") together with the Go runtime and
// process collectors.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	m := &PrometheusMetrics{
		registry: reg,
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_scheduled_total",
			Help:      "Notifications handed to the delivery subsystem.",
		}, []string{"kind", "result"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_attempts_total",
			Help:      "Sink delivery attempts.",
		}, []string{"channel", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_cycles_total",
			Help:      "Weather fetch cycles.",
		}, []string{"reason", "result"}),
		alerts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alerts_per_cycle",
			Help:      "Alerts generated per fetch cycle.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8},
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scheduled,
		m.delivered,
		m.refreshes,
		m.alerts,
		m.requests,
	)
	return m
}

// Registry exposes the underlying registry for extra collectors.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusMetrics) RecordScheduled(_ context.Context, kind types.NotificationKind, result MetricResult) {
	m.scheduled.WithLabelValues(string(kind), string(result)).Inc()
}

func (m *PrometheusMetrics) RecordDelivery(_ context.Context, channel string, result MetricResult) {
	m.delivered.WithLabelValues(channel, string(result)).Inc()
}

func (m *PrometheusMetrics) RecordAlerts(_ context.Context, count int) {
	m.alerts.Observe(float64(count))
}

func (m *PrometheusMetrics) RecordRefresh(_ context.Context, reason types.RefreshReason, result MetricResult) {
	m.refreshes.WithLabelValues(string(reason), string(result)).Inc()
}

// RecordRequest satisfies the HTTP chassis' MetricsCollector.
func (m *PrometheusMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.requests.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}
