package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

// Sync operation outcomes used as metric labels.
const (
	syncResultOK        = "ok"
	syncResultSkipped   = "unchanged"
	syncResultError     = "error"
	syncResultCoalesced = "coalesced"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncPulls       *prometheus.CounterVec
	syncPushes      *prometheus.CounterVec
	syncDuration    *prometheus.HistogramVec
	conflicts       *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	unread          prometheus.Gauge
	dirtyKinds      prometheus.Gauge

	requestCount         uint64
	requestDurationTotal uint64
	pullCount            uint64
	pullFailures         uint64
	pushCount            uint64
	pushFailures         uint64
	conflictCount        uint64
	unreadCount          int64
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

	syncPulls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_pulls_total",
		Help: "Change request pulls from the remote store by kind and result",
	}, []string{"kind", "result"})

	syncPushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_pushes_total",
		Help: "Change request pushes to the remote store by kind and result",
	}, []string{"kind", "result"})

	syncDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_remote_duration_seconds",
		Help:    "Latency of remote store calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "change_request_conflicts_skipped_total",
		Help: "Remote copies ignored because the local request was already decided",
	}, []string{"kind"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "change_request_transitions_total",
		Help: "Workflow operations by kind and action",
	}, []string{"kind", "action"})

	unread := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "change_request_unread",
		Help: "Current notification badge count",
	})

	dirtyKinds := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_dirty_kinds",
		Help: "Kinds whose local state has not reached the remote store",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, syncPulls, syncPushes, syncDuration, conflicts, transitions, unread, dirtyKinds, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncPulls:       syncPulls,
		syncPushes:      syncPushes,
		syncDuration:    syncDuration,
		conflicts:       conflicts,
		transitions:     transitions,
		unread:          unread,
		dirtyKinds:      dirtyKinds,
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

// RecordPull counts a pull attempt for kind.
func (m *MetricsService) RecordPull(kind models.SubjectKind, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncPulls.WithLabelValues(string(kind), result).Inc()
	m.syncDuration.WithLabelValues("pull").Observe(duration.Seconds())
	atomic.AddUint64(&m.pullCount, 1)
	if result == syncResultError {
		atomic.AddUint64(&m.pullFailures, 1)
	}
}

// RecordPush counts a push attempt for kind.
func (m *MetricsService) RecordPush(kind models.SubjectKind, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncPushes.WithLabelValues(string(kind), result).Inc()
	if result == syncResultCoalesced {
		return
	}
	m.syncDuration.WithLabelValues("push").Observe(duration.Seconds())
	atomic.AddUint64(&m.pushCount, 1)
	if result == syncResultError {
		atomic.AddUint64(&m.pushFailures, 1)
	}
}

// RecordConflicts counts skipped remote copies.
func (m *MetricsService) RecordConflicts(kind models.SubjectKind, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conflicts.WithLabelValues(string(kind)).Add(float64(n))
	atomic.AddUint64(&m.conflictCount, uint64(n))
}

// RecordTransition counts a workflow operation.
func (m *MetricsService) RecordTransition(kind models.SubjectKind, action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(kind), action).Inc()
}

// SetUnread publishes the notification badge count.
func (m *MetricsService) SetUnread(n int) {
	if m == nil {
		return
	}
	atomic.StoreInt64(&m.unreadCount, int64(n))
	m.unread.Set(float64(n))
}

// SetDirtyKinds publishes how many kinds await a push.
func (m *MetricsService) SetDirtyKinds(n int) {
	if m == nil {
		return
	}
	m.dirtyKinds.Set(float64(n))
}

// Snapshot returns aggregated metrics suitable for the sync status endpoint.
func (m *MetricsService) Snapshot() models.EngineMetrics {
	if m == nil {
		return models.EngineMetrics{}
	}
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.EngineMetrics{
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		PullsTotal:               atomic.LoadUint64(&m.pullCount),
		PullFailures:             atomic.LoadUint64(&m.pullFailures),
		PushesTotal:              atomic.LoadUint64(&m.pushCount),
		PushFailures:             atomic.LoadUint64(&m.pushFailures),
		ConflictsSkipped:         atomic.LoadUint64(&m.conflictCount),
		Unread:                   atomic.LoadInt64(&m.unreadCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
