// Package metrics provides Prometheus metrics for the Mera Din site.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the site.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Reader-facing business metrics
	pageViews        *prometheus.CounterVec
	formSubmissions  *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	shareLinks       *prometheus.CounterVec

	// Scoring API collaborator
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// Reading cache
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	cacheEntries prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec

	// Error tracking
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "meradin",
		subsystem:        "site",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.pageViews = m.counterVec("page_views_total",
		"Total number of rendered pages by page", "page")
	m.formSubmissions = m.counterVec("form_submissions_total",
		"Total number of form submissions by form and outcome", "form", "outcome")
	m.validationErrors = m.counterVec("validation_errors_total",
		"Total number of field validation failures by form and field", "form", "field")
	m.shareLinks = m.counterVec("share_links_total",
		"Total number of share links rendered by form", "form")

	m.upstreamRequests = m.counterVec("upstream_requests_total",
		"Total number of scoring API calls by endpoint and result", "endpoint", "result")
	m.upstreamLatency = m.histogramVec("upstream_latency_milliseconds",
		"Scoring API call latency in milliseconds", "endpoint")

	m.cacheHits = m.counterVec("reading_cache_hits_total",
		"Total number of readings served from cache by form", "form")
	m.cacheMisses = m.counterVec("reading_cache_misses_total",
		"Total number of reading cache misses by form", "form")
	m.cacheEntries = m.gauge("reading_cache_entries",
		"Current number of cached readings")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by route and method", "route", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "route", "method", "status_code")
	m.rateLimited = m.counterVec("rate_limited_total",
		"Total number of requests rejected by the rate limiter", "route")

	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.customLabels,
	})
}

// RecordPageView increments the page view counter for page.
func RecordPageView(page string) {
	globalManager.pageViews.WithLabelValues(page).Inc()
}

// RecordFormSubmission records one submission of form with its outcome
// (ok, invalid, upstream_error, rate_limited).
func RecordFormSubmission(form, outcome string) {
	globalManager.formSubmissions.WithLabelValues(form, outcome).Inc()
}

// RecordValidationError records a failed field on form.
func RecordValidationError(form, field string) {
	globalManager.validationErrors.WithLabelValues(form, field).Inc()
}

// RecordShareLink records a rendered WhatsApp share link.
func RecordShareLink(form string) {
	globalManager.shareLinks.WithLabelValues(form).Inc()
}

// RecordUpstreamRequest records a scoring API call and its latency.
func RecordUpstreamRequest(endpoint, result string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(endpoint, result).Inc()
	globalManager.upstreamLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// RecordCacheHit increments the reading cache hit counter.
func RecordCacheHit(form string) {
	globalManager.cacheHits.WithLabelValues(form).Inc()
}

// RecordCacheMiss increments the reading cache miss counter.
func RecordCacheMiss(form string) {
	globalManager.cacheMisses.WithLabelValues(form).Inc()
}

// UpdateCacheEntries sets the number of cached readings.
func UpdateCacheEntries(n int) {
	globalManager.cacheEntries.Set(float64(n))
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(route, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(route, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(route, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(route, method, statusCode).Observe(duration)
}

// RecordRateLimited increments the rate limiter rejection counter.
func RecordRateLimited(route string) {
	globalManager.rateLimited.WithLabelValues(route).Inc()
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the current memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Totals gathers the custom registry and sums every counter and gauge
// across its label sets, keyed by fully qualified metric name.
func Totals() (map[string]float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGather, err)
	}
	out := make(map[string]float64, len(families))
	for _, mf := range families {
		var sum float64
		for _, metric := range mf.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				sum += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sum += metric.GetGauge().GetValue()
			default:
				continue
			}
		}
		out[mf.GetName()] = sum
	}
	return out, nil
}
