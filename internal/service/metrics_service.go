package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/academic-repo-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	statusTransitions *prometheus.CounterVec
	resourceAccess    *prometheus.CounterVec
	uploads           *prometheus.CounterVec
	fanOutBatches     *prometheus.CounterVec
	fanOutRecipients  prometheus.Counter

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	transitionCount      uint64
	accessCount          uint64
	batchesSent          uint64
	batchesFailed        uint64
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	statusTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resource_status_transitions_total",
		Help: "Moderation decisions by resulting status and actor role",
	}, []string{"status", "role"})

	resourceAccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resource_access_total",
		Help: "Recorded resource reads by action",
	}, []string{"action"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resource_uploads_total",
		Help: "Uploaded resources by type",
	}, []string{"type"})

	fanOutBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notification_fanout_batches_total",
		Help: "Approval broadcast batches by outcome",
	}, []string{"result"})

	fanOutRecipients := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_fanout_recipients_total",
		Help: "Users addressed by approval broadcasts",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		statusTransitions, resourceAccess, uploads, fanOutBatches, fanOutRecipients, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		statusTransitions: statusTransitions,
		resourceAccess:    resourceAccess,
		uploads:           uploads,
		fanOutBatches:     fanOutBatches,
		fanOutRecipients:  fanOutRecipients,
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

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordStatusTransition counts a committed moderation decision.
func (m *MetricsService) RecordStatusTransition(status models.ResourceStatus, role models.UserRole) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(string(status), string(role)).Inc()
	atomic.AddUint64(&m.transitionCount, 1)
}

// RecordAccess counts a recorded view, download or preview.
func (m *MetricsService) RecordAccess(action models.AccessAction) {
	if m == nil {
		return
	}
	m.resourceAccess.WithLabelValues(string(action)).Inc()
	atomic.AddUint64(&m.accessCount, 1)
}

// RecordUpload counts a stored resource.
func (m *MetricsService) RecordUpload(resourceType models.ResourceType) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(string(resourceType)).Inc()
}

// RecordFanOutBatch counts one broadcast batch and its recipients.
func (m *MetricsService) RecordFanOutBatch(recipients int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.fanOutBatches.WithLabelValues("failed").Inc()
		atomic.AddUint64(&m.batchesFailed, 1)
		return
	}
	m.fanOutBatches.WithLabelValues("sent").Inc()
	m.fanOutRecipients.Add(float64(recipients))
	atomic.AddUint64(&m.batchesSent, 1)
}

// Snapshot returns aggregated metrics suitable for the admin API.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		CacheHits:                hits,
		CacheMisses:              misses,
		CacheHitRatio:            cacheRatio,
		StatusTransitions:        atomic.LoadUint64(&m.transitionCount),
		ResourceAccesses:         atomic.LoadUint64(&m.accessCount),
		FanOutBatchesSent:        atomic.LoadUint64(&m.batchesSent),
		FanOutBatchesFailed:      atomic.LoadUint64(&m.batchesFailed),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
