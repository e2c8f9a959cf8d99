package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the server's Prometheus collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	Bookings      *prometheus.CounterVec
	TopUps        *prometheus.CounterVec
	Cancellations prometheus.Counter
	LedgerDrift   *prometheus.GaugeVec
	AuditRuns     *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "court",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome (ok, slotTaken, insufficientFunds, invalid, notFound, error).",
		}, []string{"outcome"}),
		TopUps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "court",
			Name:      "topups_total",
			Help:      "Top-up attempts by outcome (ok, cannotTopUp, invalid, notFound, error).",
		}, []string{"outcome"}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "court",
			Name:      "cancellations_total",
			Help:      "Reservations cancelled by an admin.",
		}),
		LedgerDrift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "court",
			Name:      "ledger_drift_minor_units",
			Help:      "Stored balance minus transaction sum, per member with non-zero drift.",
		}, []string{"member_id"}),
		AuditRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "court",
			Name:      "ledger_audit_runs_total",
			Help:      "Ledger audit runs by result (consistent, drift, error).",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "court",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	reg.MustRegister(
		m.Bookings, m.TopUps, m.Cancellations, m.LedgerDrift, m.AuditRuns, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Instrument records request latency labelled by chi route pattern.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPDuration.WithLabelValues(route, r.Method, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
