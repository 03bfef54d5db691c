package handlers

import (
	"net/http"
	"strconv"

	"social-ingest/internal/acquire"
	"social-ingest/internal/logging"
)

const (
	proxyCacheControl   = "public, max-age=31536000, immutable"
	proxyDefaultContent = "image/jpeg"
)

// ProxyImage relays a remote image so the browser can display assets whose
// hosts refuse cross-origin or hotlinked requests.
func (h *Handlers) ProxyImage(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		writeJSONError(w, "URL parameter is required", http.StatusBadRequest)
		return
	}

	data, contentType, err := h.acquirer.Download(r.Context(), acquire.Request{SourceURL: imageURL})
	if err != nil {
		logging.Warn("proxy image %s: %v", imageURL, err)
		writeJSONError(w, "Failed to fetch image", http.StatusBadGateway)
		return
	}
	if contentType == "" {
		contentType = proxyDefaultContent
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", proxyCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := w.Write(data); err != nil {
		logging.Debug("proxy image write: %v", err)
	}
}
