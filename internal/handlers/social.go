package handlers

import (
	"context"
	"errors"
	"net/http"

	"social-ingest/internal/ingest"
	"social-ingest/internal/social"
)

const maxJSONBody = 1 << 20

// FetchRequest is the body of the ingestion endpoints.
type FetchRequest struct {
	URL string `json:"url"`
}

// CleanupRequest lists reference URLs whose objects should be deleted.
// A nil ImageURLs means the field was absent.
type CleanupRequest struct {
	ImageURLs []string `json:"imageUrls"`
	Favicon   string   `json:"favicon,omitempty"`
}

// CleanupResponse always reports success; the tallies are informational.
type CleanupResponse struct {
	Success bool `json:"success"`
	ingest.Result
}

// FetchSocial resolves a profile or page URL into a ProfileRecord.
func (h *Handlers) FetchSocial(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.orch.Ingest)
}

// FetchOpenGraph forces the Open Graph strategy for any URL.
func (h *Handlers) FetchOpenGraph(w http.ResponseWriter, r *http.Request) {
	h.fetch(w, r, h.orch.IngestOpenGraph)
}

func (h *Handlers) fetch(w http.ResponseWriter, r *http.Request, run func(context.Context, string) (*social.ProfileRecord, error)) {
	var req FetchRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := run(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, social.ErrInvalidInput) {
			writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSONError(w, "Failed to fetch profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, record)
}

// CleanupSocial deletes the social/ objects behind the given references.
// Individual failures are logged and never fail the call.
func (h *Handlers) CleanupSocial(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ImageURLs == nil {
		writeJSONError(w, "imageUrls array is required", http.StatusBadRequest)
		return
	}

	urls := req.ImageURLs
	if req.Favicon != "" {
		urls = append(urls, req.Favicon)
	}

	res := h.orch.Cleanup(r.Context(), urls)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, CleanupResponse{Success: true, Result: res})
}
