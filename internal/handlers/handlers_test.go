package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"social-ingest/internal/acquire"
	"social-ingest/internal/database"
	"social-ingest/internal/ingest"
	"social-ingest/internal/objectstore"
	"social-ingest/internal/social"
)

type testEnv struct {
	h       *Handlers
	store   *objectstore.Memory
	ledger  *database.Database
	sweeper *ingest.Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := objectstore.NewMemory("http://minio.test", "media")

	db, err := database.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	acq := acquire.New(store, nil, db, acquire.Config{Timeout: 5 * time.Second})
	resolver := social.NewResolver(social.Config{FetchTimeout: 5 * time.Second}, acq)
	orch := ingest.New(resolver, store, db, 4)
	sweeper := ingest.NewSweeper(orch, 0)

	return &testEnv{
		h:       New(orch, acq, db, sweeper),
		store:   store,
		ledger:  db,
		sweeper: sweeper,
	}
}

func pngBytes(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: 120, B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestFetchSocial(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"twitter handle", `{"url":"https://x.com/jack"}`, http.StatusOK},
		{"malformed body", `{"url":`, http.StatusBadRequest},
		{"missing url", `{}`, http.StatusBadRequest},
		{"unsupported scheme", `{"url":"ftp://example.com"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/social/fetch", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			e.h.FetchSocial(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", w.Code, tt.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
		})
	}
}

func TestFetchSocialRecordShape(t *testing.T) {
	e := newTestEnv(t)
	req := jsonRequest(t, http.MethodPost, "/api/social/fetch", FetchRequest{URL: "https://twitter.com/@jack"})
	w := httptest.NewRecorder()

	e.h.FetchSocial(w, req)

	var got map[string]interface{}
	decodeBody(t, w, &got)
	if got["platform"] != "twitter" || got["username"] != "jack" || got["displayName"] != "@jack" {
		t.Errorf("record = %v", got)
	}
	if images, ok := got["images"].([]interface{}); !ok || len(images) != 0 {
		t.Errorf("images = %v, want []", got["images"])
	}
}

func TestFetchOpenGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, `<html><head>
<meta property="og:title" content="Hello World | Example">
<meta content="A page" property="og:description">
</head></html>`)
	}))
	defer srv.Close()

	e := newTestEnv(t)
	req := jsonRequest(t, http.MethodPost, "/api/social/opengraph", FetchRequest{URL: srv.URL + "/"})
	w := httptest.NewRecorder()

	e.h.FetchOpenGraph(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]interface{}
	decodeBody(t, w, &got)
	if got["platform"] != "opengraph" || got["title"] != "Hello World" || got["description"] != "A page" {
		t.Errorf("record = %v", got)
	}
	if got["image"] != nil {
		t.Errorf("image = %v, want null", got["image"])
	}
}

func TestCleanupSocial(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	var urls []string
	for _, key := range []string{"social/instagram/a.jpg", "social/favicon/b.png", "u1/keep.png"} {
		if err := e.store.Put(ctx, key, []byte("x"), "image/jpeg"); err != nil {
			t.Fatalf("Put: %v", err)
		}
		u, _ := e.store.ReferenceURL(ctx, key, 0)
		urls = append(urls, u)
	}

	req := jsonRequest(t, http.MethodPost, "/api/social/cleanup", map[string]interface{}{
		"imageUrls": []string{urls[0], urls[2], "not a url"},
		"favicon":   urls[1],
	})
	w := httptest.NewRecorder()

	e.h.CleanupSocial(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got CleanupResponse
	decodeBody(t, w, &got)
	if !got.Success || got.Deleted != 2 || got.Skipped != 2 || got.Failed != 0 {
		t.Errorf("response = %+v", got)
	}
	if keys := e.store.Keys(); len(keys) != 1 || keys[0] != "u1/keep.png" {
		t.Errorf("remaining keys = %v", keys)
	}
}

func TestCleanupSocialFailureStillSucceeds(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	key := "social/og/a.jpg"
	_ = e.store.Put(ctx, key, []byte("x"), "image/jpeg")
	u, _ := e.store.ReferenceURL(ctx, key, 0)
	e.store.FailOn("delete", key, io.ErrUnexpectedEOF)

	w := httptest.NewRecorder()
	e.h.CleanupSocial(w, jsonRequest(t, http.MethodPost, "/api/social/cleanup", CleanupRequest{ImageURLs: []string{u}}))

	var got CleanupResponse
	decodeBody(t, w, &got)
	if w.Code != http.StatusOK || !got.Success || got.Failed != 1 {
		t.Errorf("status = %d, response = %+v", w.Code, got)
	}
}

func TestCleanupSocialRequiresImageURLs(t *testing.T) {
	e := newTestEnv(t)
	for _, body := range []string{`{}`, `{"favicon":"http://minio.test/media/social/favicon/a.png"}`, `nope`} {
		req := httptest.NewRequest(http.MethodPost, "/api/social/cleanup", strings.NewReader(body))
		w := httptest.NewRecorder()
		e.h.CleanupSocial(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, w.Code)
		}
	}

	// An empty array is a valid no-op.
	w := httptest.NewRecorder()
	e.h.CleanupSocial(w, httptest.NewRequest(http.MethodPost, "/api/social/cleanup", strings.NewReader(`{"imageUrls":[]}`)))
	if w.Code != http.StatusOK {
		t.Errorf("empty imageUrls: status = %d, want 200", w.Code)
	}
}

func TestProxyImage(t *testing.T) {
	gif := []byte("GIF89a\x01\x00\x01\x00")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/a.gif":
			w.Header().Set("Content-Type", "image/gif")
			_, _ = w.Write(gif)
		case "/untyped":
			w.Header()["Content-Type"] = nil
			_, _ = w.Write(gif)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	e := newTestEnv(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantType   string
	}{
		{"relays bytes", "/api/proxy-image?url=" + srv.URL + "/a.gif", http.StatusOK, "image/gif"},
		{"defaults content type", "/api/proxy-image?url=" + srv.URL + "/untyped", http.StatusOK, "image/jpeg"},
		{"upstream error", "/api/proxy-image?url=" + srv.URL + "/broken", http.StatusBadGateway, "application/json"},
		{"missing url", "/api/proxy-image", http.StatusBadRequest, "application/json"},
		{"non-http url", "/api/proxy-image?url=file:///etc/passwd", http.StatusBadGateway, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			e.h.ProxyImage(w, httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if !bytes.Equal(w.Body.Bytes(), gif) {
				t.Errorf("body = %q", w.Body.Bytes())
			}
			if cc := w.Header().Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
				t.Errorf("Cache-Control = %q", cc)
			}
		})
	}
}

func TestGetLinkInfo(t *testing.T) {
	h := &Handlers{}

	tests := []struct {
		target     string
		wantStatus int
		wantTitle  string
		wantSlug   string
	}{
		{"/api/link-info?url=https://www.instagram.com/someone", http.StatusOK, "Instagram", "instagram"},
		{"/api/link-info?url=https://blog.example.com/post", http.StatusOK, "Blog", ""},
		{"/api/link-info?url=nonsense", http.StatusOK, "Link", ""},
		{"/api/link-info", http.StatusBadRequest, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.GetLinkInfo(w, httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got map[string]string
			decodeBody(t, w, &got)
			if got["title"] != tt.wantTitle || got["platform"] != tt.wantSlug {
				t.Errorf("info = %v", got)
			}
		})
	}
}

func TestGetVideoInfo(t *testing.T) {
	h := &Handlers{}

	w := httptest.NewRecorder()
	h.GetVideoInfo(w, httptest.NewRequest(http.MethodGet, "/api/video-info?url=https://youtu.be/abc123", http.NoBody))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got map[string]string
	decodeBody(t, w, &got)
	if got["platform"] != "youtube" || got["videoId"] != "abc123" || got["embedUrl"] != "https://www.youtube.com/embed/abc123" {
		t.Errorf("video = %v", got)
	}

	w = httptest.NewRecorder()
	h.GetVideoInfo(w, httptest.NewRequest(http.MethodGet, "/api/video-info?url=https://example.com/watch", http.NoBody))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown video: status = %d, want 404", w.Code)
	}
}
