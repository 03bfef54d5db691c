package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"social-ingest/internal/ingest"
	"social-ingest/internal/logging"
	"social-ingest/internal/startup"
)

const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// readinessProbeKey is looked up (never written) to prove the bucket is
// reachable.
const readinessProbeKey = "social/.readyz"

const probeTimeout = 3 * time.Second

// LedgerHealth summarises the object ledger.
type LedgerHealth struct {
	Live          int    `json:"live"`
	PendingDelete int    `json:"pendingDelete"`
	Deleted       int    `json:"deleted"`
	LiveBytes     int64  `json:"liveBytes"`
	LastSweep     string `json:"lastSweep,omitempty"`
	Sweeping      bool   `json:"sweeping"`
	Error         string `json:"error,omitempty"`

	// LastSweepResult is the outcome of the last sweep run by this process.
	LastSweepResult *ingest.Result `json:"lastSweepResult,omitempty"`
}

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	StorageError string        `json:"storageError,omitempty"`
	Ledger       *LedgerHealth `json:"ledger,omitempty"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// probeStore checks that the object store answers.
func (h *Handlers) probeStore(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := h.store.Exists(ctx, readinessProbeKey)
	return err
}

func (h *Handlers) ledgerHealth(ctx context.Context) *LedgerHealth {
	if h.ledger == nil {
		return nil
	}
	lh := &LedgerHealth{}
	if h.sweeper != nil {
		lh.Sweeping = h.sweeper.IsSweeping()
		if at, res := h.sweeper.LastRun(); !at.IsZero() {
			lh.LastSweepResult = &res
		}
	}

	stats, err := h.ledger.Counts(ctx)
	if err != nil {
		lh.Error = err.Error()
		return lh
	}
	lh.Live = stats.LiveObjects
	lh.PendingDelete = stats.PendingDeletes
	lh.Deleted = stats.DeletedObjects
	lh.LiveBytes = stats.LiveBytes

	last, err := h.ledger.LastSweep(ctx)
	if err != nil {
		logging.Debug("health: last sweep unavailable: %v", err)
	} else if !last.IsZero() {
		lh.LastSweep = last.Format(time.RFC3339)
	}
	return lh
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       statusHealthy,
		Ready:        true,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		Ledger:       h.ledgerHealth(r.Context()),
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if response.Ledger != nil && response.Ledger.Error != "" {
		response.Status = statusDegraded
	}

	code := http.StatusOK
	if err := h.probeStore(r.Context()); err != nil {
		response.Status = statusUnhealthy
		response.Ready = false
		response.StorageError = err.Error()
		code = http.StatusServiceUnavailable
	}

	writeJSONStatus(w, response, code)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only when the object store is reachable
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.probeStore(r.Context()); err != nil {
		logging.Warn("readiness: object store unreachable: %v", err)
		writeJSONStatus(w, map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
		return
	}
	writeJSONStatus(w, map[string]string{"status": "ready"}, http.StatusOK)
}
