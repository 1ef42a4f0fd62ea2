// Package metrics exposes Prometheus collectors for credit decisions, ledger
// writes and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	TransactionsTotal   *prometheus.CounterVec
	OperationDuration   *prometheus.HistogramVec
	DriftDetectedTotal  prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. Tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storecredit_decisions_total",
				Help: "Credit limit decisions by outcome",
			},
			[]string{"status"},
		),
		TransactionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storecredit_transactions_total",
				Help: "Ledger writes by type and result",
			},
			[]string{"type", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storecredit_operation_duration_seconds",
				Help:    "Duration of credit operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "status"},
		),
		DriftDetectedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "storecredit_drift_detected_total",
				Help: "Pairs whose limit usage disagreed with the ledger",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storecredit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storecredit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) RecordDecision(status string) {
	if m == nil {
		return
	}
	m.DecisionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordTransaction(txType string, err error) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(txType, statusLabel(err)).Inc()
}

func (m *Metrics) RecordOperation(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation, statusLabel(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordDrift() {
	if m == nil {
		return
	}
	m.DriftDetectedTotal.Inc()
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
