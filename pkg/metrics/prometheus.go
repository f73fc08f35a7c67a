// Package metrics provides Prometheus metrics for the Loka location service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the Loka service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Location Metrics - writes coming from clients
	locationUpdates *prometheus.CounterVec
	tagUpdates      prometheus.Counter

	// Proximity Metrics - nearby queries
	nearbyQueries   prometheus.Counter
	nearbyScanned   prometheus.Counter
	nearbyResults   prometheus.Histogram
	nearbyLatency   prometheus.Histogram
	invalidRequests *prometheus.CounterVec

	// Radar Metrics - marker placement
	radarProjections prometheus.Counter
	radarAttempts    prometheus.Histogram
	radarNudged      prometheus.Counter
	radarOverlaps    prometheus.Counter

	// Store Metrics
	storeRecordsTotal prometheus.Gauge
	storeOpLatency    *prometheus.HistogramVec
	storeFlushes      *prometheus.CounterVec
	cacheLookups      *prometheus.CounterVec

	// Scheduler Metrics
	taskRuns *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// global pairs the package level manager with the custom registry it
// registers on, avoiding default Go metrics.
type global struct {
	manager  *Manager
	registry *prometheus.Registry
}

var current atomic.Pointer[global] //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Series recorded before the call stay on the previous registry.
func Init(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	m := NewManager(append(opts[:len(opts):len(opts)], WithPrometheusRegistry(registry))...)
	current.Store(&global{manager: m, registry: registry})
	return m
}

// Get returns the global manager.
func Get() *Manager { return current.Load().manager }

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "loka",
		subsystem:        "location",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// RefreshInterval returns how often gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Enabled reports whether recording is active.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Location Metrics
	m.locationUpdates = auto.NewCounterVec(
		m.counterOpts("location_updates_total", "Total number of location reports by outcome (created or updated)"),
		[]string{"outcome"},
	)
	m.tagUpdates = auto.NewCounter(m.counterOpts("tag_updates_total", "Total number of tag changes"))

	// Proximity Metrics
	m.nearbyQueries = auto.NewCounter(m.counterOpts("nearby_queries_total", "Total number of nearby queries served"))
	m.nearbyScanned = auto.NewCounter(m.counterOpts("nearby_candidates_scanned_total", "Total number of records scanned by nearby queries"))
	m.nearbyResults = auto.NewHistogram(m.histogramOpts(
		"nearby_results", "Number of users returned per nearby query",
		[]float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
	))
	m.nearbyLatency = auto.NewHistogram(m.histogramOpts(
		"nearby_latency_milliseconds", "Latency of nearby queries in milliseconds", m.histogramBuckets,
	))
	m.invalidRequests = auto.NewCounterVec(
		m.counterOpts("invalid_arguments_total", "Total number of operations rejected for invalid arguments"),
		[]string{"operation"},
	)

	// Radar Metrics
	m.radarProjections = auto.NewCounter(m.counterOpts("radar_projections_total", "Total number of radar projections"))
	m.radarAttempts = auto.NewHistogram(m.histogramOpts(
		"radar_placement_attempts", "Candidate positions evaluated per placed marker",
		[]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	))
	m.radarNudged = auto.NewCounter(m.counterOpts("radar_markers_nudged_total", "Total number of markers moved off their raw angle"))
	m.radarOverlaps = auto.NewCounter(m.counterOpts("radar_markers_overlapping_total", "Total number of markers accepted after exhausting placement attempts"))

	// Store Metrics
	m.storeRecordsTotal = auto.NewGauge(m.gaugeOpts("store_records", "Number of location records held by the store"))
	m.storeOpLatency = auto.NewHistogramVec(
		m.histogramOpts("store_operation_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets),
		[]string{"backend", "operation"},
	)
	m.storeFlushes = auto.NewCounterVec(
		m.counterOpts("store_flushes_total", "Total number of store flushes by result"),
		[]string{"result"},
	)
	m.cacheLookups = auto.NewCounterVec(
		m.counterOpts("cache_lookups_total", "Total number of record cache lookups by result"),
		[]string{"result"},
	)

	// Scheduler Metrics
	m.taskRuns = auto.NewCounterVec(
		m.counterOpts("scheduled_task_runs_total", "Total number of scheduled task runs by task and result"),
		[]string{"task", "result"},
	)

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds (user experience)", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	// Error Metrics
	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts(
		"system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	))
}

// RecordLocationUpdate counts a location report; created distinguishes new users.
func (m *Manager) RecordLocationUpdate(created bool) {
	if !m.enabled {
		return
	}
	outcome := "updated"
	if created {
		outcome = "created"
	}
	m.locationUpdates.WithLabelValues(outcome).Inc()
}

// RecordTagUpdate counts a tag change.
func (m *Manager) RecordTagUpdate() {
	if m.enabled {
		m.tagUpdates.Inc()
	}
}

// RecordNearbyQuery records a completed nearby query.
func (m *Manager) RecordNearbyQuery(scanned, results int, latencyMs float64) {
	if !m.enabled {
		return
	}
	m.nearbyQueries.Inc()
	m.nearbyScanned.Add(float64(scanned))
	m.nearbyResults.Observe(float64(results))
	m.nearbyLatency.Observe(latencyMs)
}

// RecordInvalidArgument counts an operation rejected by validation.
func (m *Manager) RecordInvalidArgument(operation string) {
	if m.enabled {
		m.invalidRequests.WithLabelValues(operation).Inc()
	}
}

// RecordPlacement records the attempts used for one radar marker.
func (m *Manager) RecordPlacement(attempts int, overlaps bool) {
	if !m.enabled {
		return
	}
	m.radarAttempts.Observe(float64(attempts))
	if attempts > 1 {
		m.radarNudged.Inc()
	}
	if overlaps {
		m.radarOverlaps.Inc()
	}
}

// RecordRadarProjection counts a radar projection.
func (m *Manager) RecordRadarProjection() {
	if m.enabled {
		m.radarProjections.Inc()
	}
}

// UpdateStoreRecords sets the number of stored records.
func (m *Manager) UpdateStoreRecords(count int) {
	if m.enabled {
		m.storeRecordsTotal.Set(float64(count))
	}
}

// RecordStoreOperation records the latency of a store operation.
func (m *Manager) RecordStoreOperation(backend, operation string, latencyMs float64) {
	if m.enabled {
		m.storeOpLatency.WithLabelValues(backend, operation).Observe(latencyMs)
	}
}

// RecordStoreFlush counts a flush attempt.
func (m *Manager) RecordStoreFlush(ok bool) {
	if m.enabled {
		m.storeFlushes.WithLabelValues(result(ok)).Inc()
	}
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Manager) RecordCacheLookup(hit bool) {
	if !m.enabled {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// RecordTaskRun counts a scheduled task execution.
func (m *Manager) RecordTaskRun(task string, ok bool) {
	if m.enabled {
		m.taskRuns.WithLabelValues(task, result(ok)).Inc()
	}
}

// RecordHTTPRequest records an HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	if m.enabled {
		m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func (m *Manager) RecordErrorByEndpoint(endpoint, method, errorType string) {
	if m.enabled {
		m.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystem sets the runtime gauges.
func (m *Manager) UpdateSystem(memoryBytes uint64, goroutines int, gcPauseMs float64) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(memoryBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
	if gcPauseMs > 0 {
		m.systemGCPauseTime.Observe(gcPauseMs)
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}

// Package level helpers delegating to the global manager.

// RecordLocationUpdate counts a location report on the global manager.
func RecordLocationUpdate(created bool) { Get().RecordLocationUpdate(created) }

// RecordTagUpdate counts a tag change.
func RecordTagUpdate() { Get().RecordTagUpdate() }

// RecordNearbyQuery records a completed nearby query.
func RecordNearbyQuery(scanned, results int, latencyMs float64) {
	Get().RecordNearbyQuery(scanned, results, latencyMs)
}

// RecordInvalidArgument counts an operation rejected by validation.
func RecordInvalidArgument(operation string) { Get().RecordInvalidArgument(operation) }

// RecordRadarProjection counts a radar projection.
func RecordRadarProjection() { Get().RecordRadarProjection() }

// RecordPlacement records the attempts used for one radar marker.
func RecordPlacement(attempts int, overlaps bool) { Get().RecordPlacement(attempts, overlaps) }

// UpdateStoreRecords sets the number of stored records.
func UpdateStoreRecords(count int) { Get().UpdateStoreRecords(count) }

// RecordStoreOperation records the latency of a store operation.
func RecordStoreOperation(backend, operation string, latencyMs float64) {
	Get().RecordStoreOperation(backend, operation, latencyMs)
}

// RecordStoreFlush counts a flush attempt.
func RecordStoreFlush(ok bool) { Get().RecordStoreFlush(ok) }

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(hit bool) { Get().RecordCacheLookup(hit) }

// RecordTaskRun counts a scheduled task execution.
func RecordTaskRun(task string, ok bool) { Get().RecordTaskRun(task, ok) }

// RecordHTTPRequest records an HTTP request and its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	Get().RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	Get().RecordErrorByComponent(component, errorType)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	Get().RecordErrorByEndpoint(endpoint, method, errorType)
}

// UpdateSystem sets the runtime gauges.
func UpdateSystem(memoryBytes uint64, goroutines int, gcPauseMs float64) {
	Get().UpdateSystem(memoryBytes, goroutines, gcPauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}

// RefreshInterval returns how often the global manager wants gauges refreshed.
func RefreshInterval() time.Duration { return Get().RefreshInterval() }
