package metrics

// Label values shared with the packages that record them.
var (
	Platforms    = []string{"instagram", "tiktok", "twitter", "opengraph"}
	AssetClasses = []string{"social", "og", "profile", "favicon", "upload"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, p := range Platforms {
		for _, outcome := range []string{"success", "degraded", "invalid"} {
			IngestionsTotal.WithLabelValues(p, outcome)
		}
		StrategyDuration.WithLabelValues(p)
	}
	// URLs that fail to parse never reach a platform.
	IngestionsTotal.WithLabelValues("unknown", "invalid")

	for _, upstream := range []string{"instagram", "opengraph", "media"} {
		for _, status := range []string{"2xx", "3xx", "4xx", "5xx", "error"} {
			UpstreamRequestsTotal.WithLabelValues(upstream, status)
		}
	}

	for _, cache := range []string{"instagram", "opengraph"} {
		MetadataCacheHits.WithLabelValues(cache)
		MetadataCacheMisses.WithLabelValues(cache)
	}

	for _, op := range []string{"instagram_profile"} {
		RetryAttempts.WithLabelValues(op)
		RetrySuccess.WithLabelValues(op)
		RetryFailures.WithLabelValues(op)
		RetryDuration.WithLabelValues(op)
	}

	for _, class := range AssetClasses {
		for _, status := range []string{"success", "download_error", "transcode_error", "storage_error", "passthrough"} {
			MediaAcquisitionsTotal.WithLabelValues(class, status)
		}
		MediaDownloadBytes.WithLabelValues(class)
		TranscodeDuration.WithLabelValues(class)
	}

	for _, op := range []string{"put", "head", "delete", "presign", "ensure_bucket"} {
		StorageOperationsTotal.WithLabelValues(op, "success")
		StorageOperationsTotal.WithLabelValues(op, "error")
		StorageOperationDuration.WithLabelValues(op)
	}

	for _, status := range []string{"deleted", "skipped", "failed"} {
		CleanupDeletionsTotal.WithLabelValues(status)
	}

	for _, state := range []string{"live", "pending_delete", "deleted"} {
		LedgerObjects.WithLabelValues(state)
	}
	for _, op := range []string{"record_stored", "record_deleted", "mark_pending", "stats"} {
		LedgerErrors.WithLabelValues(op)
	}
}

// StatusClass buckets an HTTP status code into "2xx", "4xx", ... for the
// upstream request counter.
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "error"
	}
}
