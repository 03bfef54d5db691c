package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInstagramUsername(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://instagram.com/example", "example"},
		{"https://www.instagram.com/example/", "example"},
		{"https://www.instagram.com/example?hl=en", "example"},
		{"https://www.Instagram.com/Example#top", "Example"},
		{"https://instagr.am/short.name", "short.name"},
		{"https://instagram.com/@handle", "handle"},
		{"https://instagram.com/", ""},
	}
	for _, tt := range tests {
		if got := InstagramUsername(tt.url); got != tt.want {
			t.Errorf("InstagramUsername(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

// fakeInstagram serves the profile API and post images. The first
// failFirst profile calls answer failStatus.
type fakeInstagram struct {
	t          *testing.T
	srv        *httptest.Server
	apiCalls   atomic.Int32
	failFirst  int32
	failStatus int
	posts      int
	brokenPost int // 1-based index of a post whose image 404s; 0 for none
	png        []byte

	mu      sync.Mutex
	headers http.Header
}

func newFakeInstagram(t *testing.T, failFirst int32, failStatus, posts int) *fakeInstagram {
	f := &fakeInstagram{t: t, failFirst: failFirst, failStatus: failStatus, posts: posts, png: pngBytes(t, 80, 80)}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeInstagram) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/users/web_profile_info/":
		n := f.apiCalls.Add(1)
		f.mu.Lock()
		f.headers = r.Header.Clone()
		f.mu.Unlock()
		if n <= f.failFirst {
			w.WriteHeader(f.failStatus)
			return
		}
		username := r.URL.Query().Get("username")
		edges := make([]map[string]any, 0, f.posts)
		for i := 1; i <= f.posts; i++ {
			node := map[string]any{}
			src := fmt.Sprintf("%s/img/%d.png", f.srv.URL, i)
			if i == f.brokenPost {
				src = f.srv.URL + "/missing.png"
			}
			if i%2 == 0 {
				node["thumbnail_src"] = src
			} else {
				node["display_url"] = src
			}
			edges = append(edges, map[string]any{"node": node})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"user": map[string]any{
					"username":                     username,
					"full_name":                    "Example Person",
					"biography":                    "Photos of things.",
					"edge_owner_to_timeline_media": map[string]any{"edges": edges},
				},
			},
		})
	case strings.HasPrefix(r.URL.Path, "/img/"):
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(f.png)
	default:
		http.NotFound(w, r)
	}
}

func TestInstagramRetriesUnauthorizedThenSucceeds(t *testing.T) {
	fake := newFakeInstagram(t, 2, http.StatusUnauthorized, 8)
	fake.brokenPost = 3
	env := newTestEnv(t, fake.srv.URL)

	s, u, err := env.resolver.Resolve("https://instagram.com/example")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	out := s.Fetch(context.Background(), u)
	if out.Degraded() {
		t.Fatalf("Fetch() degraded: %v", out.Reason)
	}

	rec := out.Record
	if rec.Platform != PlatformInstagram || rec.Username != "example" || rec.DisplayName != "Example Person" {
		t.Errorf("record = %+v", rec)
	}
	if rec.Bio != "Photos of things." {
		t.Errorf("Bio = %q", rec.Bio)
	}

	if got := fake.apiCalls.Load(); got != 3 {
		t.Errorf("API calls = %d, want 3", got)
	}
	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond}
	if len(env.sleeps.delays) != 2 || env.sleeps.delays[0] != want[0] || env.sleeps.delays[1] != want[1] {
		t.Errorf("backoff delays = %v, want %v", env.sleeps.delays, want)
	}

	// Six most recent posts considered; the broken third one is dropped.
	if len(rec.MediaRefs) != 5 {
		t.Fatalf("MediaRefs = %d, want 5", len(rec.MediaRefs))
	}
	for i, wantPost := range []int{1, 2, 4, 5, 6} {
		wantSrc := fmt.Sprintf("%s/img/%d.png", fake.srv.URL, wantPost)
		if rec.MediaRefs[i].SourceURL != wantSrc {
			t.Errorf("MediaRefs[%d].SourceURL = %q, want %q", i, rec.MediaRefs[i].SourceURL, wantSrc)
		}
		if !strings.HasPrefix(rec.MediaRefs[i].StoredKey, "social/instagram/") {
			t.Errorf("StoredKey = %q", rec.MediaRefs[i].StoredKey)
		}
	}
	if len(env.store.Keys()) != 5 {
		t.Errorf("stored objects = %d, want 5", len(env.store.Keys()))
	}

	fake.mu.Lock()
	hdr := fake.headers
	fake.mu.Unlock()
	if hdr.Get("X-IG-App-ID") != DefaultInstagramAppID || hdr.Get("Sec-Fetch-Mode") != "cors" || !strings.Contains(hdr.Get("User-Agent"), "Chrome/120") {
		t.Errorf("API headers = %v", hdr)
	}
}

func TestInstagramNonUnauthorizedFailureDoesNotRetry(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusTooManyRequests, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			fake := newFakeInstagram(t, 10, status, 3)
			env := newTestEnv(t, fake.srv.URL)

			s, u, _ := env.resolver.Resolve("https://www.instagram.com/example/")
			out := s.Fetch(context.Background(), u)

			if !out.Degraded() {
				t.Fatal("expected degraded outcome")
			}
			rec := out.Record
			if rec.Platform != PlatformInstagram || rec.Username != "example" || rec.DisplayName != "example" || rec.Bio != "" || len(rec.MediaRefs) != 0 {
				t.Errorf("degraded record = %+v", rec)
			}
			if got := fake.apiCalls.Load(); got != 1 {
				t.Errorf("API calls = %d, want 1", got)
			}
			if len(env.sleeps.delays) != 0 {
				t.Errorf("unexpected backoff: %v", env.sleeps.delays)
			}
		})
	}
}

func TestInstagramExhaustedRetriesDegrade(t *testing.T) {
	fake := newFakeInstagram(t, 10, http.StatusUnauthorized, 3)
	env := newTestEnv(t, fake.srv.URL)

	s, u, _ := env.resolver.Resolve("https://instagram.com/example")
	out := s.Fetch(context.Background(), u)

	if !out.Degraded() || out.Record.DisplayName != "example" {
		t.Errorf("outcome = %+v", out)
	}
	if got := fake.apiCalls.Load(); got != 3 {
		t.Errorf("API calls = %d, want 3", got)
	}
}

func TestInstagramUnreachableDegrades(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	s, u, _ := env.resolver.Resolve("https://instagram.com/example")
	out := s.Fetch(context.Background(), u)
	if !out.Degraded() || out.Record.Username != "example" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestInstagramProfileIsCachedButMediaIsNot(t *testing.T) {
	fake := newFakeInstagram(t, 0, 0, 2)
	env := newTestEnv(t, fake.srv.URL)
	s, u, _ := env.resolver.Resolve("https://instagram.com/example")

	first := s.Fetch(context.Background(), u)
	second := s.Fetch(context.Background(), u)

	if got := fake.apiCalls.Load(); got != 1 {
		t.Errorf("API calls = %d, want 1 (second served from cache)", got)
	}
	if len(first.Record.MediaRefs) != 2 || len(second.Record.MediaRefs) != 2 {
		t.Fatalf("media = %d and %d, want 2 each", len(first.Record.MediaRefs), len(second.Record.MediaRefs))
	}
	if first.Record.MediaRefs[0].StoredKey == second.Record.MediaRefs[0].StoredKey {
		t.Error("each record should own freshly stored objects")
	}
}

func TestInstagramWithoutUsernameDegradesWithoutNetwork(t *testing.T) {
	env := newTestEnv(t, "http://127.0.0.1:1")
	s, u, _ := env.resolver.Resolve("https://instagram.com/")
	out := s.Fetch(context.Background(), u)
	if !out.Degraded() {
		t.Error("expected degraded outcome")
	}
	if calls := env.transport.calls.Load(); calls != 0 {
		t.Errorf("network calls = %d, want 0", calls)
	}
}
