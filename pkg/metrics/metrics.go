// Package metrics exposes Prometheus counters for impersonation transitions,
// command outcomes and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	impersonations *prometheus.CounterVec
	commands       *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	logsPruned     prometheus.Counter
}

// New registers the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		impersonations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secure_impersonation_transitions_total",
			Help: "Impersonation start and end attempts by outcome",
		}, []string{"transition", "outcome"}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secure_commands_total",
			Help: "Dispatched commands by outcome",
		}, []string{"command", "outcome"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "secure_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "secure_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logsPruned: f.NewCounter(prometheus.CounterOpts{
			Name: "secure_activity_logs_pruned_total",
			Help: "Activity log entries removed by retention pruning",
		}),
	}
}

func (m *Metrics) ObserveImpersonation(transition, outcome string) {
	m.impersonations.WithLabelValues(transition, outcome).Inc()
}

func (m *Metrics) ObserveCommand(command, outcome string) {
	m.commands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ObservePruned(n int64) {
	if n > 0 {
		m.logsPruned.Add(float64(n))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by their chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
