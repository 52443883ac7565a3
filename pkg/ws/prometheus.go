package ws

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "relay"

// PrometheusMetrics 基于 Prometheus 的 Metrics 实现
// 使用独立的 Registry，可通过 Handler 暴露
type PrometheusMetrics struct {
	registry *prometheus.Registry

	connectionsTotal    prometheus.Counter
	connectionsActive   prometheus.Gauge
	connectionsRejected prometheus.Counter
	messagesTotal       *prometheus.CounterVec
	messagesInvalid     *prometheus.CounterVec
	evictionsTotal      *prometheus.CounterVec
	broadcastDuration   prometheus.Histogram
	transportErrors     *prometheus.CounterVec
}

// NewPrometheusMetrics 创建并注册全部指标
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &PrometheusMetrics{
		registry: reg,
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_total",
			Help:      "Total number of accepted connections",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections_active",
			Help:      "Number of currently registered connections",
		}),
		connectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed at admission because the registry was full",
		}),
		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_total",
			Help:      "Accepted inbound messages by discriminator",
		}, []string{"type"}),
		messagesInvalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_invalid_total",
			Help:      "Rejected inbound frames by reason",
		}, []string{"reason"}),
		evictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "evictions_total",
			Help:      "Connections removed by the liveness monitor",
		}, []string{"reason"}),
		broadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "broadcast_duration_seconds",
			Help:      "Time spent delivering a broadcast to all targets",
			Buckets:   prometheus.DefBuckets,
		}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transport_errors_total",
			Help:      "Transport errors by direction",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		m.connectionsTotal,
		m.connectionsActive,
		m.connectionsRejected,
		m.messagesTotal,
		m.messagesInvalid,
		m.evictionsTotal,
		m.broadcastDuration,
		m.transportErrors,
	)
	return m
}

// Registry 返回底层 Registry
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 指标抓取端点
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *PrometheusMetrics) IncrementConnections() {
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

func (m *PrometheusMetrics) DecrementConnections() {
	m.connectionsActive.Dec()
}

func (m *PrometheusMetrics) SetConnectionCount(count int) {
	m.connectionsActive.Set(float64(count))
}

func (m *PrometheusMetrics) IncrementRejectedConnections() {
	m.connectionsRejected.Inc()
}

func (m *PrometheusMetrics) IncrementMessageCount(msgType string) {
	m.messagesTotal.WithLabelValues(msgType).Inc()
}

func (m *PrometheusMetrics) IncrementInvalidMessages(reason string) {
	m.messagesInvalid.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) IncrementEvictions(reason string) {
	m.evictionsTotal.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) RecordBroadcastLatency(duration time.Duration) {
	m.broadcastDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) IncrementReadErrors() {
	m.transportErrors.WithLabelValues("read").Inc()
}

func (m *PrometheusMetrics) IncrementWriteErrors() {
	m.transportErrors.WithLabelValues("write").Inc()
}

// metricsHandler Metrics 实现可选地暴露抓取端点
type metricsHandler interface {
	Handler() http.Handler
}
