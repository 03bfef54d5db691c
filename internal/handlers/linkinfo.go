package handlers

import (
	"net/http"

	"social-ingest/internal/linkinfo"
)

// GetLinkInfo returns a display title and platform slug for a URL.
func (h *Handlers) GetLinkInfo(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeJSONError(w, "URL parameter is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, linkinfo.Detect(raw))
}

// GetVideoInfo returns the embed URL of a YouTube, Vimeo or Loom link.
func (h *Handlers) GetVideoInfo(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeJSONError(w, "URL parameter is required", http.StatusBadRequest)
		return
	}

	video, ok := linkinfo.ParseVideoURL(raw)
	if !ok {
		writeJSONError(w, "Unsupported video URL", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, video)
}
