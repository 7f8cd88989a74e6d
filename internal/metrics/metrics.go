// Package metrics provides Prometheus metrics for the PulseDelta API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the API collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
	rateLimited     prometheus.Counter
	wsClients       prometheus.Gauge
	archivedEvents  prometheus.Counter
	archiveRuns     *prometheus.CounterVec
}

// New registers the API collectors, plus the Go runtime and process
// collectors, in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsedelta_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulsedelta_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsedelta_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsedelta_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pulsedelta_ws_clients",
			Help: "Connected websocket clients",
		}),
		archivedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pulsedelta_archived_events_total",
			Help: "Market events exported to cold storage",
		}),
		archiveRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsedelta_archive_runs_total",
			Help: "Archive runs by result (ok, skipped, locked, error)",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.requests,
		m.requestDuration,
		m.inFlight,
		m.rateLimited,
		m.wsClients,
		m.archivedEvents,
		m.archiveRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one finished HTTP request. route is the matched
// mux pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// InFlight adjusts the in-flight request gauge by delta.
func (m *Metrics) InFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlight.Add(delta)
}

// RateLimited counts one rejected request.
func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// SetWSClients records the number of connected websocket clients.
func (m *Metrics) SetWSClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// ArchiveRun records the outcome of one archive run.
func (m *Metrics) ArchiveRun(result string, events int64) {
	if m == nil {
		return
	}
	m.archiveRuns.WithLabelValues(result).Inc()
	if events > 0 {
		m.archivedEvents.Add(float64(events))
	}
}
