package users

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics provides Prometheus-compatible metrics for the user
// service and its HTTP surface.
//
// Metrics exposed (all namespaced with "usersvc_"):
//
// 1. users (gauge): Current number of records in the collection.
//
// 2. operations_total (counter): Service operations by outcome.
// Labels: op (create/get/update/delete), outcome (ok/invalid_input/not_found/error).
//
// 3. http_requests_total (counter): Handled HTTP requests.
// Labels: method, route, status.
//
// 4. http_request_duration_ms (histogram): HTTP handling latency in milliseconds.
// Labels: method, route.
// Buckets: [0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000].
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := users.NewPrometheusMetrics(registry)
//	svc, _ := users.NewService(st, users.WithMetrics(metrics))
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe.
type PrometheusMetrics struct {
	users        prometheus.Gauge
	operations   *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	registry     prometheus.Registerer

	mu      sync.RWMutex
	enabled bool
}

// NewPrometheusMetrics creates and registers all service metrics with the
// given registry. A nil registry means prometheus.DefaultRegisterer.
//
// Registering twice against the same registry panics, as with any promauto
// collector; use a fresh prometheus.NewRegistry() per instance in tests.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	pm := &PrometheusMetrics{
		registry: registry,
		enabled:  true,
	}

	pm.users = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "usersvc",
		Name:      "users",
		Help:      "Current number of user records in the collection",
	})

	pm.operations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usersvc",
		Name:      "operations_total",
		Help:      "User service operations by outcome",
	}, []string{"op", "outcome"})

	pm.httpRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "usersvc",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by method, route template and status code",
	}, []string{"method", "route", "status"})

	pm.httpLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "usersvc",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request handling duration in milliseconds",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
	}, []string{"method", "route"})

	return pm
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// SetUsers records the current collection size.
func (pm *PrometheusMetrics) SetUsers(n int) {
	if !pm.isEnabled() {
		return
	}
	pm.users.Set(float64(n))
}

// RecordOperation counts one service operation with its outcome.
func (pm *PrometheusMetrics) RecordOperation(op, outcome string) {
	if !pm.isEnabled() {
		return
	}
	pm.operations.WithLabelValues(op, outcome).Inc()
}

// RecordRequest counts one HTTP request and observes its latency. route must
// be the route template (e.g. "/users/:id"), never the raw path, to keep label
// cardinality bounded.
func (pm *PrometheusMetrics) RecordRequest(method, route string, status int, latency time.Duration) {
	if !pm.isEnabled() {
		return
	}
	pm.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pm.httpLatency.WithLabelValues(method, route).Observe(float64(latency.Microseconds()) / 1000)
}

// Disable temporarily disables metric recording (useful for testing).
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable re-enables metric recording after Disable().
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}
