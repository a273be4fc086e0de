package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependency labels used for collaborator failure counters.
const (
	DependencyAuthority  = "authority_registry"
	DependencyToken      = "token_service"
	DependencyCredential = "credential_service"
	DependencyCourse     = "course_registry"
	DependencyUser       = "user_registry"
	DependencyEvents     = "event_feed"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, cache usage and ledger activity.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	cacheWrite      prometheus.Observer

	enrollments        prometheus.Counter
	milestones         prometheus.Counter
	completions        prometheus.Counter
	dependencyFailures *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
}

// NewMetricsService registers all collectors on a private registry.
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

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	enrollments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_enrollments_total",
		Help: "Enrollments committed to the ledger",
	})

	milestones := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_milestones_total",
		Help: "Milestones committed to progress records",
	})

	completions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_course_completions_total",
		Help: "Course completions with every side effect applied",
	})

	dependencyFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_dependency_failures_total",
		Help: "Failed calls to external collaborators",
	}, []string{"dependency"})

	eventsPublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_events_total",
		Help: "Ledger events by delivery outcome",
	}, []string{"type", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLookups, cacheWrite, enrollments, milestones, completions, dependencyFailures, eventsPublished, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLookups:       cacheLookups,
		cacheWrite:         cacheWrite,
		enrollments:        enrollments,
		milestones:         milestones,
		completions:        completions,
		dependencyFailures: dependencyFailures,
		eventsPublished:    eventsPublished,
	}
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheLookup counts a cache hit or miss.
func (m *MetricsService) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordEnrollment counts a committed enrollment.
func (m *MetricsService) RecordEnrollment() {
	if m == nil {
		return
	}
	m.enrollments.Inc()
}

// RecordMilestone counts a committed milestone.
func (m *MetricsService) RecordMilestone() {
	if m == nil {
		return
	}
	m.milestones.Inc()
}

// RecordCompletion counts a fully applied course completion.
func (m *MetricsService) RecordCompletion() {
	if m == nil {
		return
	}
	m.completions.Inc()
}

// RecordDependencyFailure counts a failed collaborator call.
func (m *MetricsService) RecordDependencyFailure(dependency string) {
	if m == nil {
		return
	}
	m.dependencyFailures.WithLabelValues(dependency).Inc()
}

// RecordEvent counts an event delivery attempt.
func (m *MetricsService) RecordEvent(eventType string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if delivered {
		outcome = "delivered"
	}
	m.eventsPublished.WithLabelValues(eventType, outcome).Inc()
}
