// Package logging provides a simple leveled logging interface for the
// ingestion service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Pipeline stages log through a Component
// so every line carries its stage tag:
//
//	var log = logging.For("ingest")
//	log.Warn("instagram fetch degraded for %s: %v", username, err)
package logging
