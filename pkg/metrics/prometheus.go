package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Contribution gate
	contributionsSubmitted prometheus.Counter
	reviews                *prometheus.CounterVec

	// Confidence updater
	confidenceApplied   prometheus.Counter
	confidenceIncrement prometheus.Histogram

	// Points awarder
	pointsAwarded prometheus.Counter
	awards        prometheus.Counter

	// Batch runs
	batchRuns     *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	itemSkips     *prometheus.CounterVec

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Trigger queue and sweeper
	queueSize       prometheus.Gauge
	queueCapacity   prometheus.Gauge
	queueEnqueued   prometheus.Counter
	queueDequeued   prometheus.Counter
	queueCoalesced  prometheus.Counter
	queueRejected   prometheus.Counter
	workerProcessed prometheus.Counter
	workerErrors    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Runtime
	goroutines  prometheus.Gauge
	memoryBytes prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "helix",
		subsystem:        "pipeline",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.contributionsSubmitted = m.counter("contributions_submitted_total", "Contributions accepted by the validation gate")
	m.reviews = m.counterVec("reviews_total", "Manager reviews by outcome", "outcome")

	m.confidenceApplied = m.counter("confidence_updates_total", "Confidence updates persisted")
	m.confidenceIncrement = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "confidence_increment",
		Help:    "Actual confidence increment applied per contribution",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 6, 8, 10, 15},
	})

	m.pointsAwarded = m.counter("points_awarded_total", "Helix points granted")
	m.awards = m.counter("awards_total", "Award records persisted")

	m.batchRuns = m.counterVec("batch_runs_total", "Batch runs by stage and result", "stage", "result")
	m.batchDuration = m.histogramVec("batch_duration_milliseconds", "Batch run duration in milliseconds", "stage")
	m.itemSkips = m.counterVec("item_skips_total", "Contributions skipped in a batch by stage and kind", "stage", "kind")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store call latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Store call failures by operation", "op")

	m.queueSize = m.gauge("trigger_queue_size", "Pending employee triggers")
	m.queueCapacity = m.gauge("trigger_queue_capacity", "Trigger queue capacity")
	m.queueEnqueued = m.counter("trigger_enqueued_total", "Employee triggers enqueued")
	m.queueDequeued = m.counter("trigger_dequeued_total", "Employee triggers dequeued")
	m.queueCoalesced = m.counter("trigger_coalesced_total", "Triggers dropped because one was already pending")
	m.queueRejected = m.counter("trigger_rejected_total", "Triggers rejected because the queue was full or closed")
	m.workerProcessed = m.counter("sweeper_runs_total", "Pipeline runs executed by the sweeper")
	m.workerErrors = m.counter("sweeper_errors_total", "Sweeper runs that failed")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.goroutines = m.gauge("goroutines", "Number of goroutines")
	m.memoryBytes = m.gauge("memory_alloc_bytes", "Heap bytes allocated")
}

// RecordContributionSubmitted counts an accepted submission.
func RecordContributionSubmitted() { globalManager.contributionsSubmitted.Inc() }

// RecordReview counts a review by outcome ("validated" or "rejected").
func RecordReview(outcome string) { globalManager.reviews.WithLabelValues(outcome).Inc() }

// RecordConfidenceApplied counts one persisted update and its actual increment.
func RecordConfidenceApplied(increment float64) {
	globalManager.confidenceApplied.Inc()
	globalManager.confidenceIncrement.Observe(increment)
}

// RecordPointsAwarded counts one persisted award.
func RecordPointsAwarded(points int) {
	globalManager.awards.Inc()
	globalManager.pointsAwarded.Add(float64(points))
}

// RecordBatchRun records a finished batch for a stage ("confidence", "points").
func RecordBatchRun(stage string, success bool, durationMs float64) {
	result := "success"
	if !success {
		result = "failure"
	}
	globalManager.batchRuns.WithLabelValues(stage, result).Inc()
	globalManager.batchDuration.WithLabelValues(stage).Observe(durationMs)
}

// RecordItemSkip counts a per-item skip or failure by error kind.
func RecordItemSkip(stage, kind string) { globalManager.itemSkips.WithLabelValues(stage, kind).Inc() }

// RecordStoreLatency records a store call latency in milliseconds.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store call.
func RecordStoreError(op string) { globalManager.storeErrors.WithLabelValues(op).Inc() }

// UpdateQueueSize sets the current trigger queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the trigger queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an enqueued trigger.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued trigger.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueCoalesced counts a trigger dropped as already pending.
func RecordQueueCoalesced() { globalManager.queueCoalesced.Inc() }

// RecordQueueRejected counts a trigger that could not be enqueued.
func RecordQueueRejected() { globalManager.queueRejected.Inc() }

// RecordSweeperRun counts a sweeper pipeline run.
func RecordSweeperRun(err error) {
	globalManager.workerProcessed.Inc()
	if err != nil {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateGoroutineCount sets the number of goroutines.
func UpdateGoroutineCount(count int) { globalManager.goroutines.Set(float64(count)) }

// UpdateMemoryUsage sets the heap allocation in bytes.
func UpdateMemoryUsage(bytes uint64) { globalManager.memoryBytes.Set(float64(bytes)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
