// Package metrics provides Prometheus instrumentation for the net-worth engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ValuationsTotal counts net-worth computations by result (ok, approximate, error).
	ValuationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networth_valuations_total",
		Help: "Total number of net-worth valuations",
	}, []string{"result"})

	// ValuationLatency tracks load-and-value time per request.
	ValuationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "networth_valuation_latency_seconds",
		Help:    "Net-worth valuation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// RecordWrites counts record creations and deletions by kind and op.
	RecordWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networth_record_writes_total",
		Help: "Record writes by kind and operation",
	}, []string{"kind", "op"})

	// RateFetches counts live rate fetch attempts by result.
	RateFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networth_rate_fetches_total",
		Help: "Live exchange-rate fetches by result",
	}, []string{"result"})

	// RateFallbacks counts valuations served from stored rates, by reason.
	RateFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networth_rate_fallbacks_total",
		Help: "Exchange-rate tables served from storage instead of a live fetch",
	}, []string{"reason"})

	// RateUnavailable counts conversion pairs that had no rate.
	RateUnavailable = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networth_rate_unavailable_total",
		Help: "Conversions that fell back to the unconverted amount",
	}, []string{"pair"})

	// ParseRequests counts text parse attempts by parser and result.
	ParseRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networth_parse_requests_total",
		Help: "Free-text parse attempts",
	}, []string{"parser", "result"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "networth_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "networth_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "networth_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern labels by chi route pattern so user ids do not explode
// cardinality. Unrouted requests fall back to the raw path.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
