// Package metrics exposes Prometheus instruments for the inventory engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "herbstock"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing,
// so components can run without a registry in tests.
type Metrics struct {
	TransactionsRecorded *prometheus.CounterVec
	RecordRetries        prometheus.Counter
	InsufficientStock    prometheus.Counter
	AlertsRaised         *prometheus.CounterVec
	SweepDuration        prometheus.Histogram
	OrdersReceived       prometheus.Counter
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		TransactionsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_recorded_total",
			Help:      "Ledger entries committed, by transaction kind.",
		}, []string{"kind"}),
		RecordRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_retries_total",
			Help:      "Recorder attempts replayed after a concurrency conflict.",
		}),
		InsufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_stock_total",
			Help:      "Withdrawals rejected because they exceeded the quantity on hand.",
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts created, by alert type.",
		}, []string{"alert_type"}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_sweep_duration_seconds",
			Help:      "Duration of the scheduled alert sweep.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		OrdersReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_received_total",
			Help:      "Purchase orders received into stock.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.TransactionsRecorded,
		m.RecordRetries,
		m.InsufficientStock,
		m.AlertsRaised,
		m.SweepDuration,
		m.OrdersReceived,
		m.HTTPRequests,
		m.HTTPDuration,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) TransactionRecorded(kind string) {
	if m == nil {
		return
	}
	m.TransactionsRecorded.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRetried() {
	if m == nil {
		return
	}
	m.RecordRetries.Inc()
}

func (m *Metrics) StockShortfall() {
	if m == nil {
		return
	}
	m.InsufficientStock.Inc()
}

func (m *Metrics) AlertRaised(alertType string) {
	if m == nil {
		return
	}
	m.AlertsRaised.WithLabelValues(alertType).Inc()
}

func (m *Metrics) SweepFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(d.Seconds())
}

func (m *Metrics) OrderReceived() {
	if m == nil {
		return
	}
	m.OrdersReceived.Inc()
}

// Middleware records request counts and latency labelled by the chi route
// pattern, which keeps label cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
