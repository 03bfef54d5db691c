// Package database is the SQLite ledger of every object the service writes
// to the bucket.
//
// Each stored asset gets a row keyed by its object key. Cleanup moves rows to
// "deleted", or to "pending_delete" when the object store refused the
// delete; the sweep retries pending rows until they succeed. The ledger is
// advisory: callers treat write failures as warnings, never as reasons to
// fail an ingestion or a cleanup.
//
// The database uses WAL mode so the HTTP server, the sweep loop and the
// metrics collector can read concurrently.
package database
