// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "corncare"

// Metrics groups the HTTP and domain collectors on their own registry
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	scansCreated prometheus.Counter
	chatMessages *prometheus.CounterVec
}

// New creates and registers every collector
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		httpInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "inflight_requests",
				Help:      "Current number of in-flight HTTP requests.",
			},
		),

		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
			},
			[]string{"method", "path"},
		),

		scansCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scans_created_total",
				Help:      "Total number of scans stored.",
			},
		),

		chatMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_messages_total",
				Help:      "Total number of chat messages stored.",
			},
			[]string{"source"},
		),
	}

	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.scansCreated,
		m.chatMessages,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RequestStarted bumps the in-flight gauge and returns the matching completion callback
func (m *Metrics) RequestStarted() func(method, path string, status int) {
	start := time.Now()
	m.httpInFlight.Inc()

	return func(method, path string, status int) {
		m.httpInFlight.Dec()
		method = strings.ToUpper(method)
		m.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// ScanCreated counts a stored scan. Safe on a nil receiver.
func (m *Metrics) ScanCreated() {
	if m == nil {
		return
	}
	m.scansCreated.Inc()
}

// ChatMessagesStored counts n stored messages. source is "manual" or "advisor".
func (m *Metrics) ChatMessagesStored(source string, n int) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(source).Add(float64(n))
}
