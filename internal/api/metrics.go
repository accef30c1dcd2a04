package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelconv/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry        *prometheus.Registry
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	callsTotal      *prometheus.CounterVec
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelconv_api_requests_total",
			Help: "Total HTTP requests handled by the gateway.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelconv_api_request_duration_seconds",
			Help:    "Gateway request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelconv_api_service_calls_total",
			Help: "Upload and conversion calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
	}
	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.callsTotal,
	)
	return m
}

func (m *metrics) metricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeCall(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err)
	}
	m.callsTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *metrics) withHTTPMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		status := statusLabel(recorder.status)

		m.requestTotal.WithLabelValues(r.Method, route, status).Inc()
		m.requestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

// routeLabel collapses image ids so label cardinality stays bounded.
func routeLabel(path string) string {
	switch path {
	case "/upload_file", "/healthz", "/readyz", "/metrics":
		return path
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 2 && parts[0] != "" {
		if kind, err := domain.ParseConversion(parts[1]); err == nil && kind.String() == parts[1] {
			return "/{id}/" + parts[1]
		}
	}
	return "unmatched"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.status = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
