package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	tasksTotal           *prometheus.CounterVec
	taskDuration         *prometheus.HistogramVec
	activeTasks          prometheus.Gauge
	uploadedBytesTotal   prometheus.Counter
	convertedBytesTotal  *prometheus.CounterVec
	pixelsProcessedTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelconv_worker_tasks_total",
			Help: "Total worker tasks by task type and outcome.",
		}, []string{"task_type", "outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelconv_worker_task_duration_seconds",
			Help:    "Handling duration for each worker task.",
			Buckets: prometheus.DefBuckets,
		}, []string{"task_type", "outcome"}),
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelconv_worker_active_tasks",
			Help: "Current number of tasks being handled by the worker.",
		}),
		uploadedBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelconv_worker_uploaded_bytes_total",
			Help: "Total image bytes stored by upload tasks.",
		}),
		convertedBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelconv_worker_converted_bytes_total",
			Help: "Total encoded output bytes by conversion.",
		}, []string{"conversion"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelconv_worker_pixels_processed_total",
			Help: "Total pixels processed across successful conversions.",
		}),
	}

	registry.MustRegister(
		m.tasksTotal,
		m.taskDuration,
		m.activeTasks,
		m.uploadedBytesTotal,
		m.convertedBytesTotal,
		m.pixelsProcessedTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
