// Package middleware provides the HTTP middleware chain of the ingestion
// API: request IDs, W3C Extended access logging, Prometheus request metrics
// and gzip compression of JSON responses.
package middleware
