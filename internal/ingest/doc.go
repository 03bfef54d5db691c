// Package ingest is the entry point of the pipeline. An Orchestrator
// resolves a URL to a fetch strategy, runs it and returns the assembled
// profile record; strategies degrade instead of failing, so the only error
// a caller ever sees is social.ErrInvalidInput.
//
// Cleanup deletes previously issued media references. It is best-effort:
// every reference is attempted, failures are logged and counted, and a
// failed deletion is left in the ledger as pending_delete for the Sweeper
// to retry.
package ingest
