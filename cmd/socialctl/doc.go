// Command socialctl runs the ingestion pipeline from the command line.
//
// It builds the same object store, ledger and strategies as the server,
// from the same environment variables (an optional .env file is loaded
// first).
//
// Usage:
//
//	socialctl <command> [flags]
//
// Commands:
//
//	ingest <url>        Resolve a profile or page URL and print the record
//	                    as JSON. --opengraph forces the Open Graph strategy.
//
//	cleanup <url>...    Delete the social/ objects behind reference URLs and
//	                    print the deleted/skipped/failed tally.
//
//	ledger              List ledger rows. --state filters by live,
//	                    pending_delete or deleted; --limit caps the output.
//
//	sweep               Retry every pending deletion once.
//
//	version             Print build information.
//
// Environment:
//
//	STORAGE_*    - Object store settings, as for the server
//	DATABASE_DIR - Ledger directory (default: /database)
//	LOG_LEVEL    - Logging level; --log-level overrides it
package main
