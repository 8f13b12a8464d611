// Package metrics provides Prometheus metrics for the restock service.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the restock service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Classifier
	trainingRuns            prometheus.Counter
	trainingAttemptFailures prometheus.Counter
	trainingFailures        prometheus.Counter
	trainingDuration        prometheus.Histogram
	trainingLoss            prometheus.Gauge
	classifierReady         prometheus.Gauge

	// Evaluation
	evaluations       prometheus.Counter
	evaluationLatency prometheus.Histogram
	malformedItems    prometheus.Counter
	duplicateItems    prometheus.Counter

	// Catalog loading
	catalogLoads        *prometheus.CounterVec
	catalogLoadDuration prometheus.Histogram
	catalogItems        prometheus.Gauge
	catalogReorderItems prometheus.Gauge
	catalogRejections   prometheus.Counter

	// Query pipeline
	pipelineRuns       prometheus.Counter
	pipelineLatency    prometheus.Histogram
	pipelineExprErrors prometheus.Counter

	// Job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Store
	storeReplaces     *prometheus.CounterVec
	storeErrors       *prometheus.CounterVec
	storeQueryLatency *prometheus.HistogramVec

	// Upstream catalog source
	sourceRequests     *prometheus.CounterVec
	sourceLatency      prometheus.Histogram
	sourceCircuitState prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "restock",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.trainingRuns = auto.NewCounter(m.counterOpts("training_runs_total",
		"Number of classifier training runs started"))
	m.trainingAttemptFailures = auto.NewCounter(m.counterOpts("training_attempt_failures_total",
		"Training attempts discarded for divergence or poor fit"))
	m.trainingFailures = auto.NewCounter(m.counterOpts("training_failures_total",
		"Training runs that exhausted every attempt"))
	m.trainingDuration = auto.NewHistogram(m.histogramOpts("training_duration_milliseconds",
		"Wall time of a classifier training run"))
	m.trainingLoss = auto.NewGauge(m.gaugeOpts("training_loss",
		"Final binary cross-entropy of the trained classifier"))
	m.classifierReady = auto.NewGauge(m.gaugeOpts("classifier_ready",
		"1 once the classifier is trained and usable"))

	m.evaluations = auto.NewCounter(m.counterOpts("evaluations_total",
		"Items classified successfully"))
	m.evaluationLatency = auto.NewHistogram(m.histogramOpts("evaluation_latency_milliseconds",
		"Latency of a single classifier prediction including training wait"))
	m.malformedItems = auto.NewCounter(m.counterOpts("malformed_items_total",
		"Items rejected by validation"))
	m.duplicateItems = auto.NewCounter(m.counterOpts("duplicate_items_total",
		"Items rejected for a repeated identifier"))

	m.catalogLoads = auto.NewCounterVec(m.counterOpts("catalog_loads_total",
		"Catalog loads by outcome"), []string{"outcome"})
	m.catalogLoadDuration = auto.NewHistogram(m.histogramOpts("catalog_load_duration_milliseconds",
		"Wall time of a catalog load"))
	m.catalogItems = auto.NewGauge(m.gaugeOpts("catalog_items",
		"Items in the current catalog snapshot"))
	m.catalogReorderItems = auto.NewGauge(m.gaugeOpts("catalog_reorder_items",
		"Items in the current snapshot that need reordering"))
	m.catalogRejections = auto.NewCounter(m.counterOpts("catalog_rejections_total",
		"Items rejected across all loads"))

	m.pipelineRuns = auto.NewCounter(m.counterOpts("pipeline_runs_total",
		"Catalog query pipeline executions"))
	m.pipelineLatency = auto.NewHistogram(m.histogramOpts("pipeline_latency_milliseconds",
		"Latency of a catalog query"))
	m.pipelineExprErrors = auto.NewCounter(m.counterOpts("pipeline_expr_errors_total",
		"Filter expressions that failed to compile or evaluate"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size",
		"Evaluation jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity",
		"Capacity of the evaluation queue"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio",
		"Queue size over capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total",
		"Jobs accepted by the queue"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total",
		"Jobs taken off the queue by workers"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total",
		"Jobs refused because the queue was full or closed"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Configured evaluation workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active",
		"Workers currently evaluating a job"))
	m.workerIdleCount = auto.NewGauge(m.gaugeOpts("worker_idle",
		"Workers waiting for a job"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Time a worker spends on one job"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total",
		"Jobs that finished with an error"))

	m.storeReplaces = auto.NewCounterVec(m.counterOpts("store_replaces_total",
		"Snapshot replacements by backend"), []string{"backend"})
	m.storeErrors = auto.NewCounterVec(m.counterOpts("store_errors_total",
		"Store failures by backend"), []string{"backend"})
	m.storeQueryLatency = auto.NewHistogramVec(m.histogramOpts("store_query_latency_milliseconds",
		"Snapshot read latency by backend"), []string{"backend"})

	m.sourceRequests = auto.NewCounterVec(m.counterOpts("source_requests_total",
		"Upstream catalog fetches by outcome"), []string{"outcome"})
	m.sourceLatency = auto.NewHistogram(m.histogramOpts("source_latency_milliseconds",
		"Upstream catalog fetch latency"))
	m.sourceCircuitState = auto.NewGauge(m.gaugeOpts("source_circuit_state",
		"Upstream circuit breaker state: 0 closed, 1 half-open, 2 open"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration"), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_total",
		"Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes",
		"Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines",
		"Live goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_milliseconds",
		Help:        "Most recent GC pause",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50},
		ConstLabels: m.constLabels,
	})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Classifier.

// RecordTrainingRun counts a training run.
func RecordTrainingRun() { globalManager.trainingRuns.Inc() }

// RecordTrainingAttemptFailure counts a discarded training attempt.
func RecordTrainingAttemptFailure() { globalManager.trainingAttemptFailures.Inc() }

// RecordTrainingFailure counts a run that exhausted every attempt.
func RecordTrainingFailure() { globalManager.trainingFailures.Inc() }

// RecordTrainingDuration records training wall time in milliseconds.
func RecordTrainingDuration(ms float64) { globalManager.trainingDuration.Observe(ms) }

// UpdateTrainingLoss sets the final loss of the trained network.
func UpdateTrainingLoss(loss float64) { globalManager.trainingLoss.Set(loss) }

// UpdateClassifierReady flips the readiness gauge.
func UpdateClassifierReady(ready bool) { globalManager.classifierReady.Set(boolGauge(ready)) }

// Evaluation.

// RecordEvaluation counts a successful classification.
func RecordEvaluation() { globalManager.evaluations.Inc() }

// RecordEvaluationLatency records prediction latency in milliseconds.
func RecordEvaluationLatency(ms float64) { globalManager.evaluationLatency.Observe(ms) }

// RecordMalformedItem counts an item rejected by validation.
func RecordMalformedItem() { globalManager.malformedItems.Inc() }

// RecordDuplicateItem counts an item rejected for a repeated id.
func RecordDuplicateItem() { globalManager.duplicateItems.Inc() }

// Catalog.

// RecordCatalogLoad counts a load with outcome "ok", "partial" or "failed".
func RecordCatalogLoad(outcome string) { globalManager.catalogLoads.WithLabelValues(outcome).Inc() }

// RecordCatalogLoadDuration records load wall time in milliseconds.
func RecordCatalogLoadDuration(ms float64) { globalManager.catalogLoadDuration.Observe(ms) }

// UpdateCatalogItems sets the snapshot size and the number needing reorder.
func UpdateCatalogItems(total, reorder int) {
	globalManager.catalogItems.Set(float64(total))
	globalManager.catalogReorderItems.Set(float64(reorder))
}

// RecordCatalogRejections adds n rejected items.
func RecordCatalogRejections(n int) { globalManager.catalogRejections.Add(float64(n)) }

// Pipeline.

// RecordPipelineRun counts a query and records its latency in milliseconds.
func RecordPipelineRun(ms float64) {
	globalManager.pipelineRuns.Inc()
	globalManager.pipelineLatency.Observe(ms)
}

// RecordPipelineExprError counts a failed filter expression.
func RecordPipelineExprError() { globalManager.pipelineExprErrors.Inc() }

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets size over capacity.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a job handed to a worker.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a refused job.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Workers.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) { globalManager.workerIdleCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records per-job time in milliseconds.
func RecordWorkerProcessingLatency(ms float64) { globalManager.workerProcessingLatency.Observe(ms) }

// RecordWorkerError counts a job that failed.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Store.

// RecordStoreReplace counts a snapshot swap on backend.
func RecordStoreReplace(backend string) { globalManager.storeReplaces.WithLabelValues(backend).Inc() }

// RecordStoreError counts a failed store call on backend.
func RecordStoreError(backend string) { globalManager.storeErrors.WithLabelValues(backend).Inc() }

// RecordStoreQueryLatency records a read on backend in milliseconds.
func RecordStoreQueryLatency(backend string, ms float64) {
	globalManager.storeQueryLatency.WithLabelValues(backend).Observe(ms)
}

// Source.

// RecordSourceRequest counts an upstream fetch with its outcome.
func RecordSourceRequest(outcome string) { globalManager.sourceRequests.WithLabelValues(outcome).Inc() }

// RecordSourceLatency records upstream latency in milliseconds.
func RecordSourceLatency(ms float64) { globalManager.sourceLatency.Observe(ms) }

// UpdateSourceCircuitState maps a breaker state name onto the gauge.
func UpdateSourceCircuitState(state string) error {
	var v float64
	switch state {
	case "closed":
		v = 0
	case "half-open":
		v = 1
	case "open":
		v = 2
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCircuitState, state)
	}
	globalManager.sourceCircuitState.Set(v)
	return nil
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent counts an error raised by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records the last GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry the global collectors live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
