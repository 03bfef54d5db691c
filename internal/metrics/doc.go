// Package metrics provides Prometheus instrumentation for the ingestion service.
//
// All metrics are registered through promauto at package init and prefixed
// with "social_ingest_". Call InitializeMetrics once at startup so every
// label combination is exported from the first scrape.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//
// ## Ingestion Metrics
//   - IngestionsTotal: by platform and outcome (success/degraded/invalid)
//   - StrategyDuration: wall time per platform strategy
//   - UpstreamRequestsTotal: third-party calls by upstream and status class
//   - MetadataCacheHits / MetadataCacheMisses
//
// ## Retry Metrics
//   - RetryAttempts, RetrySuccess, RetryFailures, RetryDuration
//
// ## Media Metrics
//   - MediaAcquisitionsTotal: by asset class and status
//   - MediaDownloadBytes, TranscodeDuration
//
// ## Object Store Metrics
//   - StorageOperationsTotal, StorageOperationDuration, CleanupDeletionsTotal
//
// ## Ledger Metrics
//
// Updated by the Collector from the SQLite ledger:
//   - LedgerObjects (live/pending_delete/deleted), LedgerBytes
//   - LedgerErrors, SweepRunsTotal
//
// ## Memory Metrics
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses: decode gate state
package metrics
