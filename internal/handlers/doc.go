// Package handlers provides the HTTP handlers of the ingestion service.
//
// It includes handlers for:
//   - Social profile and Open Graph ingestion
//   - Cleanup of previously issued media references
//   - Direct, from-URL and profile photo uploads
//   - Image proxying, link info and video embed lookup
//   - Health checks, version and metrics
package handlers
