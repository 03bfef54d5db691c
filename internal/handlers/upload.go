package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"social-ingest/internal/acquire"
	"social-ingest/internal/logging"
	"social-ingest/internal/media"
	"social-ingest/internal/objectstore"
)

const (
	maxUploadBytes       = 5 << 20
	maxProfilePhotoBytes = 10 << 20
	// multipartSlack covers boundaries and part headers on top of the file.
	multipartSlack = 1 << 20
)

// fromURLReferer is sent with from-URL downloads; Instagram's CDN rejects
// requests without it.
const fromURLReferer = "https://www.instagram.com/"

// UploadResponse is returned by the upload endpoints.
type UploadResponse struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
}

// FromURLRequest asks for an image to be downloaded and rehosted.
type FromURLRequest struct {
	ImageURL string `json:"imageUrl"`
	Platform string `json:"platform,omitempty"`
}

// DeletePhotoRequest names the profile photo to delete.
type DeletePhotoRequest struct {
	Filename string `json:"filename"`
}

type uploadedFile struct {
	data        []byte
	name        string
	contentType string
}

func (f *uploadedFile) upload() acquire.Upload {
	return acquire.Upload{Data: f.data, Filename: f.name, ContentType: f.contentType}
}

// readImageUpload parses the multipart "file" field, enforcing an image
// content type and maxBytes. It writes the error response itself.
func readImageUpload(w http.ResponseWriter, r *http.Request, maxBytes int64, sizeMsg string) (*uploadedFile, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartSlack)
	if err := r.ParseMultipartForm(maxBytes + multipartSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, sizeMsg, http.StatusBadRequest)
			return nil, false
		}
		writeJSONError(w, "Invalid multipart form", http.StatusBadRequest)
		return nil, false
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Debug("failed to remove multipart temp files: %v", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "No file provided", http.StatusBadRequest)
		return nil, false
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Debug("failed to close upload: %v", err)
		}
	}()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeJSONError(w, "File must be an image", http.StatusBadRequest)
		return nil, false
	}
	if header.Size > maxBytes {
		writeJSONError(w, sizeMsg, http.StatusBadRequest)
		return nil, false
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		writeJSONError(w, "Failed to read file", http.StatusBadRequest)
		return nil, false
	}
	if int64(len(data)) > maxBytes {
		writeJSONError(w, sizeMsg, http.StatusBadRequest)
		return nil, false
	}

	return &uploadedFile{data: data, name: header.Filename, contentType: contentType}, true
}

// withCacheBuster appends t=<unix ms> so clients refetch replaced images.
func withCacheBuster(rawURL string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "t=" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// Upload stores an image as sent under <userId>/<id>.<ext>.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	f, ok := readImageUpload(w, r, maxUploadBytes, "File size must be less than 5MB")
	if !ok {
		return
	}

	ref, err := h.acquirer.PutUpload(r.Context(), f.upload(), media.ClassUpload, func(ext string) string {
		return objectstore.UserUploadKey(user, ext)
	}, 0)
	if err != nil {
		logging.Error("upload for %s failed: %v", user, err)
		writeJSONError(w, "Failed to upload image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, UploadResponse{URL: withCacheBuster(ref.PublicURL), Filename: ref.StoredKey})
}

// UploadFromURL downloads an image, transcodes it as a social asset and
// stores it under social/<platform>/.
func (h *Handlers) UploadFromURL(w http.ResponseWriter, r *http.Request) {
	var req FromURLRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		writeJSONError(w, "Image URL is required", http.StatusBadRequest)
		return
	}
	platform := req.Platform
	if platform == "" {
		platform = "social"
	}

	ref, err := h.acquirer.Fetch(r.Context(), acquire.Request{
		SourceURL: strings.TrimSpace(req.ImageURL),
		Class:     media.ClassSocial,
		Group:     platform,
		Referer:   fromURLReferer,
	})
	if err != nil {
		logging.Warn("upload from %s failed: %v", req.ImageURL, err)
		writeJSONError(w, "Failed to upload image", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, UploadResponse{URL: ref.PublicURL})
}

// UploadProfilePhoto stores a 512x512 JPEG under <userId>/profile-<id>.jpg
// and deletes the photo it replaces.
func (h *Handlers) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	f, ok := readImageUpload(w, r, maxProfilePhotoBytes, "File size must be less than 10MB")
	if !ok {
		return
	}
	oldFilename := strings.TrimSpace(r.FormValue("oldFilename"))

	ref, err := h.acquirer.PutUpload(r.Context(), f.upload(), media.ClassProfile, func(string) string {
		return objectstore.ProfilePhotoKey(user)
	}, objectstore.ProfilePhotoTTL)
	if err != nil {
		logging.Error("profile photo for %s failed: %v", user, err)
		writeJSONError(w, "Failed to upload profile photo", http.StatusInternalServerError)
		return
	}
	logging.Info("profile photo for %s stored as %s (%d bytes received)", user, ref.StoredKey, len(f.data))

	if oldFilename != "" && oldFilename != ref.StoredKey {
		if !strings.HasPrefix(oldFilename, objectstore.ProfilePhotoPrefix(user)) {
			logging.Warn("profile photo: %s may not delete %s", user, oldFilename)
		} else if err := h.orch.Remove(r.Context(), oldFilename); err != nil {
			logging.Warn("profile photo: failed to delete old photo %s: %v", oldFilename, err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, UploadResponse{URL: withCacheBuster(ref.PublicURL), Filename: ref.StoredKey})
}

// DeleteProfilePhoto removes one of the caller's profile photos.
func (h *Handlers) DeleteProfilePhoto(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	var req DeletePhotoRequest
	if err := decodeJSON(w, r, &req, maxJSONBody); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		writeJSONError(w, "No filename provided", http.StatusBadRequest)
		return
	}
	if !strings.HasPrefix(req.Filename, objectstore.ProfilePhotoPrefix(user)) || strings.Contains(req.Filename, "..") {
		writeJSONError(w, "Unauthorized to delete this file", http.StatusForbidden)
		return
	}

	if err := h.orch.Remove(r.Context(), req.Filename); err != nil {
		logging.Error("failed to delete profile photo %s: %v", req.Filename, err)
		writeJSONError(w, "Failed to delete profile photo", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]bool{"success": true})
}
