// Package metrics provides Prometheus instrumentation for the coach engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesSettled counts settled trades, partitioned by outcome.
	TradesSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_trades_settled_total",
		Help: "Total number of settled trades",
	}, []string{"outcome"})

	// EstimatedOutcomes counts settlements resolved via the missing-purchase heuristic.
	EstimatedOutcomes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_estimated_outcomes_total",
		Help: "Settlements with no matching purchase record",
	})

	// PatternAlerts counts detected behavioral patterns by type.
	PatternAlerts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_pattern_alerts_total",
		Help: "Behavioral pattern alerts raised",
	}, []string{"type"})

	// CoachRequests counts enrichment requests by result.
	CoachRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_enrichment_requests_total",
		Help: "Coaching-message enrichment requests",
	}, []string{"status"}) // "ok", "empty", "error"

	// CoachLatency tracks enrichment round-trip latency.
	CoachLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coach_enrichment_seconds",
		Help:    "Coaching-message request latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
	})

	// ForcedPauses counts forced-pause countdowns by how they ended.
	ForcedPauses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_forced_pauses_total",
		Help: "Forced-pause countdowns by result",
	}, []string{"result"}) // "dismissed", "expired"

	// FeedConnected reports whether the Deriv feed is currently connected.
	FeedConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coach_feed_connected",
		Help: "1 when the transaction feed is connected, 0 otherwise",
	})

	// SyncFailures counts swallowed event-sync errors.
	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coach_sync_failures_total",
		Help: "Event-sync requests that failed (best-effort, not retried)",
	})

	// WebSocketClients tracks connected dashboard WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coach_websocket_clients",
		Help: "Number of connected dashboard WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coach_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "coach_http_request_duration_seconds",
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

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
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
