package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
)

func multipartRequest(t *testing.T, target, filename, contentType string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	img := pngBytes(t, 16)

	tests := []struct {
		name        string
		user        string
		filename    string
		contentType string
		data        []byte
		wantStatus  int
	}{
		{"stores image", "u1", "me.png", "image/png", img, http.StatusOK},
		{"missing user", "", "me.png", "image/png", img, http.StatusUnauthorized},
		{"no file", "u1", "", "", nil, http.StatusBadRequest},
		{"not an image", "u1", "notes.txt", "text/plain", []byte("hello"), http.StatusBadRequest},
		{"too large", "u1", "big.png", "image/png", make([]byte, maxUploadBytes+1), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			req := multipartRequest(t, "/api/upload", tt.filename, tt.contentType, tt.data, nil)
			if tt.user != "" {
				req.Header.Set(UserIDHeader, tt.user)
			}
			w := httptest.NewRecorder()

			e.h.Upload(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if keys := e.store.Keys(); len(keys) != 0 {
					t.Errorf("rejected upload stored %v", keys)
				}
				return
			}

			var got UploadResponse
			decodeBody(t, w, &got)
			if !strings.HasPrefix(got.Filename, "u1/") || !strings.HasSuffix(got.Filename, ".png") {
				t.Errorf("filename = %q", got.Filename)
			}
			if !strings.Contains(got.URL, "/media/"+got.Filename+"?t=") {
				t.Errorf("url = %q", got.URL)
			}
			obj, ok := e.store.Get(got.Filename)
			if !ok || !bytes.Equal(obj.Data, img) || obj.ContentType != "image/png" {
				t.Errorf("stored object = %v, %v", obj.ContentType, ok)
			}
		})
	}
}

func TestUploadUsesDeclaredContentType(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="4" height="4"></svg>`)

	for _, filename := range []string{"logo#2.svg", "50%off.svg", "logo"} {
		t.Run(filename, func(t *testing.T) {
			e := newTestEnv(t)
			req := multipartRequest(t, "/api/upload", filename, "image/svg+xml", svg, nil)
			req.Header.Set(UserIDHeader, "u1")
			w := httptest.NewRecorder()

			e.h.Upload(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200 (body %q)", w.Code, w.Body.String())
			}
			var got UploadResponse
			decodeBody(t, w, &got)
			if !strings.HasSuffix(got.Filename, ".svg") {
				t.Errorf("filename = %q, want .svg key", got.Filename)
			}
			obj, ok := e.store.Get(got.Filename)
			if !ok || obj.ContentType != "image/svg+xml" {
				t.Errorf("stored content type = %q, %v", obj.ContentType, ok)
			}
		})
	}
}

func TestUploadProfilePhotoReplacesOld(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	old := "u1/profile-old.jpg"
	foreign := "u2/profile-theirs.jpg"
	for _, k := range []string{old, foreign} {
		if err := e.store.Put(ctx, k, []byte("x"), "image/jpeg"); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	for _, prev := range []string{old, foreign} {
		req := multipartRequest(t, "/api/upload/profile-photo", "me.png", "image/png", pngBytes(t, 600), map[string]string{"oldFilename": prev})
		req.Header.Set(UserIDHeader, "u1")
		w := httptest.NewRecorder()

		e.h.UploadProfilePhoto(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d (body %q)", w.Code, w.Body.String())
		}
		var got UploadResponse
		decodeBody(t, w, &got)
		if !strings.HasPrefix(got.Filename, "u1/profile-") || !strings.HasSuffix(got.Filename, ".jpg") {
			t.Errorf("filename = %q", got.Filename)
		}
		if !strings.Contains(got.URL, "t=") {
			t.Errorf("url = %q lacks cache buster", got.URL)
		}
		obj, ok := e.store.Get(got.Filename)
		if !ok || obj.ContentType != "image/jpeg" {
			t.Errorf("stored photo = %q, %v", obj.ContentType, ok)
		}
	}

	if _, ok := e.store.Get(old); ok {
		t.Error("old photo should be deleted")
	}
	if _, ok := e.store.Get(foreign); !ok {
		t.Error("another user's photo must not be deleted")
	}
}

func TestUploadProfilePhotoRejects(t *testing.T) {
	e := newTestEnv(t)

	w := httptest.NewRecorder()
	e.h.UploadProfilePhoto(w, multipartRequest(t, "/api/upload/profile-photo", "me.png", "image/png", pngBytes(t, 8), nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no user: status = %d, want 401", w.Code)
	}

	req := multipartRequest(t, "/api/upload/profile-photo", "big.png", "image/png", make([]byte, maxProfilePhotoBytes+1), nil)
	req.Header.Set(UserIDHeader, "u1")
	w = httptest.NewRecorder()
	e.h.UploadProfilePhoto(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("too large: status = %d, want 400", w.Code)
	}

	req = multipartRequest(t, "/api/upload/profile-photo", "bad.png", "image/png", []byte("not really a png"), nil)
	req.Header.Set(UserIDHeader, "u1")
	w = httptest.NewRecorder()
	e.h.UploadProfilePhoto(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("undecodable: status = %d, want 500", w.Code)
	}
}

func TestDeleteProfilePhoto(t *testing.T) {
	tests := []struct {
		name       string
		user       string
		body       string
		wantStatus int
		wantGone   bool
	}{
		{"deletes own photo", "u1", `{"filename":"u1/profile-a.jpg"}`, http.StatusOK, true},
		{"missing user", "", `{"filename":"u1/profile-a.jpg"}`, http.StatusUnauthorized, false},
		{"missing filename", "u1", `{}`, http.StatusBadRequest, false},
		{"other user's photo", "u2", `{"filename":"u1/profile-a.jpg"}`, http.StatusForbidden, false},
		{"not a profile photo", "u1", `{"filename":"u1/other.jpg"}`, http.StatusForbidden, false},
		{"traversal", "u1", `{"filename":"u1/profile-../../u2/x.jpg"}`, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			key := "u1/profile-a.jpg"
			if err := e.store.Put(context.Background(), key, []byte("x"), "image/jpeg"); err != nil {
				t.Fatalf("Put: %v", err)
			}

			req := httptest.NewRequest(http.MethodDelete, "/api/upload/profile-photo", strings.NewReader(tt.body))
			if tt.user != "" {
				req.Header.Set(UserIDHeader, tt.user)
			}
			w := httptest.NewRecorder()

			e.h.DeleteProfilePhoto(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if _, ok := e.store.Get(key); ok == tt.wantGone {
				t.Errorf("object present = %v, want gone = %v", ok, tt.wantGone)
			}
		})
	}
}

func TestUploadFromURL(t *testing.T) {
	img := pngBytes(t, 32)
	var referer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pic.png" {
			http.NotFound(w, r)
			return
		}
		referer = r.Header.Get("Referer")
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	e := newTestEnv(t)

	w := httptest.NewRecorder()
	e.h.UploadFromURL(w, jsonRequest(t, http.MethodPost, "/api/upload/from-url", FromURLRequest{ImageURL: srv.URL + "/pic.png", Platform: "instagram"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (body %q)", w.Code, w.Body.String())
	}
	var got UploadResponse
	decodeBody(t, w, &got)
	if !strings.Contains(got.URL, "/media/social/instagram/") || !strings.HasSuffix(got.URL, ".jpg") {
		t.Errorf("url = %q", got.URL)
	}
	if referer != "https://www.instagram.com/" {
		t.Errorf("Referer = %q", referer)
	}

	w = httptest.NewRecorder()
	e.h.UploadFromURL(w, jsonRequest(t, http.MethodPost, "/api/upload/from-url", FromURLRequest{ImageURL: srv.URL + "/pic.png"}))
	decodeBody(t, w, &got)
	if !strings.Contains(got.URL, "/media/social/social/") {
		t.Errorf("default platform url = %q", got.URL)
	}

	cases := []struct {
		body       string
		wantStatus int
	}{
		{`{}`, http.StatusBadRequest},
		{`{"imageUrl":"` + srv.URL + `/missing.png"}`, http.StatusInternalServerError},
		{`{"imageUrl":`, http.StatusBadRequest},
	}
	for _, c := range cases {
		w := httptest.NewRecorder()
		e.h.UploadFromURL(w, httptest.NewRequest(http.MethodPost, "/api/upload/from-url", io.NopCloser(strings.NewReader(c.body))))
		if w.Code != c.wantStatus {
			t.Errorf("body %s: status = %d, want %d", c.body, w.Code, c.wantStatus)
		}
	}
}

func TestWithCacheBuster(t *testing.T) {
	tests := []struct {
		in, wantPrefix string
	}{
		{"http://minio.test/media/u1/a.png", "http://minio.test/media/u1/a.png?t="},
		{"http://minio.test/media/u1/a.png?X-Amz-Signature=abc", "http://minio.test/media/u1/a.png?X-Amz-Signature=abc&t="},
	}
	for _, tt := range tests {
		if got := withCacheBuster(tt.in); !strings.HasPrefix(got, tt.wantPrefix) || len(got) == len(tt.wantPrefix) {
			t.Errorf("withCacheBuster(%q) = %q", tt.in, got)
		}
	}
}
