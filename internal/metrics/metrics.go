package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_ingest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_ingest_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Ingestion metrics
var (
	IngestionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_ingestions_total",
			Help: "Total number of ingestions by platform and outcome",
		},
		[]string{"platform", "outcome"}, // outcome: success, degraded, invalid
	)

	StrategyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_ingest_strategy_duration_seconds",
			Help:    "Time spent in a fetch strategy, including media acquisition",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"platform"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_upstream_requests_total",
			Help: "Requests made to third-party upstreams by target and HTTP status class",
		},
		[]string{"upstream", "status"}, // status: 2xx, 4xx, 5xx, error
	)

	MetadataCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_metadata_cache_hits_total",
			Help: "Metadata cache hits by cache",
		},
		[]string{"cache"},
	)

	MetadataCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_metadata_cache_misses_total",
			Help: "Metadata cache misses by cache",
		},
		[]string{"cache"},
	)
)

// Retry metrics
var (
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_retry_attempts_total",
			Help: "Total number of retry attempts (excluding the first call)",
		},
		[]string{"operation"},
	)

	RetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	RetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_retry_failures_total",
			Help: "Operations that still failed after exhausting retries",
		},
		[]string{"operation"},
	)

	RetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_ingest_retry_duration_seconds",
			Help:    "Total duration of retried operations including backoff",
			Buckets: []float64{0.1, 0.5, 1, 2, 3, 5, 8, 13},
		},
		[]string{"operation"},
	)
)

// Media metrics
var (
	MediaAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_media_acquisitions_total",
			Help: "Media acquisitions by asset class and status",
		},
		[]string{"class", "status"}, // status: success, download_error, transcode_error, storage_error, passthrough
	)

	MediaDownloadBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_ingest_media_download_bytes",
			Help:    "Size of downloaded source media in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"class"},
	)

	TranscodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_ingest_transcode_duration_seconds",
			Help:    "Image transcode duration by asset class",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"class"},
	)
)

// Object store metrics
var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_storage_operations_total",
			Help: "Object store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "social_ingest_storage_operation_duration_seconds",
			Help:    "Object store operation duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	CleanupDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_cleanup_deletions_total",
			Help: "Cleanup outcomes per reference",
		},
		[]string{"status"}, // deleted, skipped, failed
	)
)

// Ledger metrics
var (
	LedgerObjects = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "social_ingest_ledger_objects",
			Help: "Objects tracked by the ledger by state",
		},
		[]string{"state"}, // live, pending_delete, deleted
	)

	LedgerBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_ingest_ledger_live_bytes",
			Help: "Total size of live objects recorded in the ledger",
		},
	)

	LedgerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "social_ingest_ledger_errors_total",
			Help: "Ledger write failures by operation",
		},
		[]string{"operation"},
	)

	SweepRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_ingest_sweep_runs_total",
			Help: "Total number of pending-delete sweeps",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_ingest_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "social_ingest_memory_paused",
			Help: "1 while image decoding is paused for memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "social_ingest_memory_gc_pauses_total",
			Help: "Times decoding was paused and a GC forced",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "social_ingest_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
