// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] first loads an optional .env file from the working directory
// (existing variables win), then reads:
//
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - DATABASE_DIR: Directory of the object ledger (default: /database);
//     the ledger is disabled when it is not writable
//   - STORAGE_BACKEND: s3 or memory (default: s3)
//   - STORAGE_ENDPOINT, STORAGE_ACCESS_KEY, STORAGE_SECRET_KEY,
//     STORAGE_BUCKET: required for s3
//   - STORAGE_REGION: (default: us-east-1)
//   - STORAGE_PUBLIC_URL: host that replaces the endpoint in issued URLs
//   - STORAGE_URL_MODE: presigned or public (default: presigned)
//   - INSTAGRAM_APP_ID: X-IG-App-ID header value
//   - FETCH_TIMEOUT: metadata request timeout (default: 15s)
//   - DOWNLOAD_TIMEOUT: media download timeout (default: 30s)
//   - METADATA_CACHE_TTL, METADATA_CACHE_SIZE: metadata cache (10m, 512;
//     a negative size disables it)
//   - MEDIA_WORKERS: acquisition fan-out cap (default: derived from CPUs)
//   - SWEEP_INTERVAL: pending-delete sweep interval (default: 1h; 0 disables)
//
// Secrets are masked in the configuration banner.
//
// # Build Information
//
// Version, Commit and BuildTime are injected via -ldflags and exposed via
// [GetBuildInfo].
package startup
