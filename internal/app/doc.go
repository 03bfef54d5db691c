// Package app wires the ingestion pipeline from configuration: the object
// store, the optional ledger, the media acquirer, the platform resolver and
// the orchestrator. The server and socialctl build the same graph through it.
package app
