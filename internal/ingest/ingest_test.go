package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"social-ingest/internal/acquire"
	"social-ingest/internal/database"
	"social-ingest/internal/objectstore"
	"social-ingest/internal/retry"
	"social-ingest/internal/social"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 4), G: 80, B: uint8(y * 4), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

type env struct {
	store  *objectstore.Memory
	ledger *database.Database
	orch   *Orchestrator
	calls  *atomic.Int32
	sleeps *[]time.Duration
}

func newEnv(t *testing.T, apiBase string) *env {
	t.Helper()
	store := objectstore.NewMemory("http://minio.test", "media")

	db, err := database.Open(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("database.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	var (
		calls  atomic.Int32
		mu     sync.Mutex
		sleeps []time.Duration
	)
	rc := retry.DefaultConfig("instagram_profile")
	rc.Sleep = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
		return ctx.Err()
	}

	acq := acquire.New(store, nil, db, acquire.Config{Timeout: 5 * time.Second})
	resolver := social.NewResolver(social.Config{
		Client: &http.Client{
			Timeout: 5 * time.Second,
			Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				calls.Add(1)
				return http.DefaultTransport.RoundTrip(r)
			}),
		},
		InstagramAPIBase: apiBase,
		Retry:            rc,
	}, acq)

	return &env{
		store:  store,
		ledger: db,
		orch:   New(resolver, store, db, 4),
		calls:  &calls,
		sleeps: &sleeps,
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestIngestInvalidURL(t *testing.T) {
	e := newEnv(t, "")
	for _, raw := range []string{"", "not a url", "ftp://example.com/x", "https://", "mailto:a@b.c"} {
		rec, err := e.orch.Ingest(context.Background(), raw)
		if !errors.Is(err, social.ErrInvalidInput) {
			t.Errorf("Ingest(%q) error = %v, want ErrInvalidInput", raw, err)
		}
		if rec != nil {
			t.Errorf("Ingest(%q) returned a record", raw)
		}
	}
	if got := e.calls.Load(); got != 0 {
		t.Errorf("network calls = %d, want 0", got)
	}
}

func TestIngestTwitterNeedsNoNetwork(t *testing.T) {
	e := newEnv(t, "")
	rec, err := e.orch.Ingest(context.Background(), "https://x.com/@jack")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if rec.Platform != social.PlatformTwitter || rec.Username != "jack" || rec.DisplayName != "@jack" {
		t.Errorf("record = %+v", rec)
	}
	if e.calls.Load() != 0 {
		t.Error("twitter ingestion made network calls")
	}
}

func TestIngestInstagramEndToEnd(t *testing.T) {
	img := pngBytes(t)
	var apiCalls atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/users/web_profile_info/":
			if apiCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			edges := []map[string]any{}
			for i := 1; i <= 3; i++ {
				edges = append(edges, map[string]any{"node": map[string]any{
					"display_url": fmt.Sprintf("%s/p/%d.png", srv.URL, i),
				}})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"user": map[string]any{
				"username":                     "someone",
				"full_name":                    "Some One",
				"biography":                    "bio",
				"edge_owner_to_timeline_media": map[string]any{"edges": edges},
			}}})
		case strings.HasPrefix(r.URL.Path, "/p/"):
			_, _ = w.Write(img)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	e := newEnv(t, srv.URL)
	rec, err := e.orch.Ingest(context.Background(), "https://www.instagram.com/someone/")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if rec.DisplayName != "Some One" || rec.Bio != "bio" || len(rec.MediaRefs) != 3 {
		t.Fatalf("record = %+v", rec)
	}
	if got := apiCalls.Load(); got != 2 {
		t.Errorf("API calls = %d, want 2", got)
	}
	if len(*e.sleeps) != 1 || (*e.sleeps)[0] != time.Second {
		t.Errorf("backoff = %v, want [1s]", *e.sleeps)
	}

	urls := rec.Images()
	for i, ref := range rec.MediaRefs {
		if !strings.HasPrefix(ref.StoredKey, "social/instagram/") || !strings.HasSuffix(ref.StoredKey, ".jpg") {
			t.Errorf("ref[%d] key = %q", i, ref.StoredKey)
		}
		if _, ok := e.store.Get(ref.StoredKey); !ok {
			t.Errorf("ref[%d] not in store", i)
		}
		obj, err := e.ledger.Get(context.Background(), ref.StoredKey)
		if err != nil || obj.State != database.StateLive || obj.Class != "social" {
			t.Errorf("ledger row for %s = %+v, %v", ref.StoredKey, obj, err)
		}
		if urls[i] != ref.PublicURL {
			t.Errorf("Images()[%d] = %q", i, urls[i])
		}
	}

	// The same URLs clean up completely.
	res := e.orch.Cleanup(context.Background(), urls)
	if res.Deleted != 3 || res.Failed != 0 || res.Skipped != 0 {
		t.Errorf("Cleanup() = %+v", res)
	}
	if keys := e.store.Keys(); len(keys) != 0 {
		t.Errorf("store still holds %v", keys)
	}
}

func TestIngestOpenGraphDegradesOnDeadHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := newEnv(t, "")
	rec, err := e.orch.IngestOpenGraph(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("IngestOpenGraph() error = %v", err)
	}
	if rec.Platform != social.PlatformOpenGraph || rec.OpenGraph == nil || rec.OpenGraph.Title != "127.0.0.1" {
		t.Errorf("record = %+v", rec)
	}
	if rec.MediaRefs == nil {
		t.Error("degraded records carry an empty, non-nil media list")
	}
}

func TestIngestOpenGraphForcesStrategy(t *testing.T) {
	e := newEnv(t, "")
	// An x.com URL would normally need no network; forcing Open Graph fetches it.
	e.orch.resolver = social.NewResolver(social.Config{
		Client: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			e.calls.Add(1)
			return nil, errors.New("offline")
		})},
	}, nil)

	rec, err := e.orch.IngestOpenGraph(context.Background(), "https://x.com/jack")
	if err != nil {
		t.Fatalf("IngestOpenGraph() error = %v", err)
	}
	if rec.Platform != social.PlatformOpenGraph || rec.DisplayName != "x.com" {
		t.Errorf("record = %+v", rec)
	}
	if e.calls.Load() != 1 {
		t.Errorf("network calls = %d, want 1", e.calls.Load())
	}

	if _, err := e.orch.IngestOpenGraph(context.Background(), "javascript:alert(1)"); !errors.Is(err, social.ErrInvalidInput) {
		t.Errorf("invalid url error = %v", err)
	}
}
