package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"social-ingest/internal/acquire"
	"social-ingest/internal/ingest"
	"social-ingest/internal/metrics"
	"social-ingest/internal/objectstore"
)

// UserIDHeader carries the authenticated user id set by the fronting
// session layer.
const UserIDHeader = "X-User-ID"

// LedgerStats is the read side of the object ledger. *database.Database
// satisfies it.
type LedgerStats interface {
	Counts(ctx context.Context) (metrics.Stats, error)
	LastSweep(ctx context.Context) (time.Time, error)
}

type Handlers struct {
	orch      *ingest.Orchestrator
	acquirer  *acquire.Acquirer
	store     objectstore.Store
	ledger    LedgerStats
	sweeper   *ingest.Sweeper
	startTime time.Time
}

// New wires the handlers. ledger and sweeper may be nil when the ledger is
// disabled.
func New(orch *ingest.Orchestrator, acq *acquire.Acquirer, ledger LedgerStats, sweeper *ingest.Sweeper) *Handlers {
	return &Handlers{
		orch:      orch,
		acquirer:  acq,
		store:     acq.Store(),
		ledger:    ledger,
		sweeper:   sweeper,
		startTime: time.Now(),
	}
}

// userID returns the caller's id, writing a 401 when it is missing.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if id == "" {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}
