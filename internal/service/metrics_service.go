package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and
// the batch task pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	mergeDuration   *prometheus.HistogramVec
	exportBytes     *prometheus.CounterVec
	taskTotal       *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	mergeDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "achievement_merge_duration_seconds",
		Help:    "Duration of the achievement merge pipeline",
		Buckets: prometheus.DefBuckets,
	}, []string{"target"})

	exportBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "export_bytes_total",
		Help: "Bytes rendered by CSV/TSV/PDF exports",
	}, []string{"format"})

	taskTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "batch_tasks_total",
		Help: "Batch tasks by type and final state",
	}, []string{"type", "state"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, mergeDuration, exportBytes, taskTotal, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		mergeDuration:   mergeDuration,
		exportBytes:     exportBytes,
		taskTotal:       taskTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveMerge records one run of the achievement merge pipeline.
func (m *MetricsService) ObserveMerge(target string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mergeDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// ObserveExport records the size of a rendered export.
func (m *MetricsService) ObserveExport(format string, bytes int) {
	if m == nil {
		return
	}
	m.exportBytes.WithLabelValues(format).Add(float64(bytes))
}

// ObserveTask records a batch task reaching a terminal state.
func (m *MetricsService) ObserveTask(taskType, state string) {
	if m == nil {
		return
	}
	m.taskTotal.WithLabelValues(taskType, state).Inc()
}

// RecordCacheOperation counts visibility cache hits and misses.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
