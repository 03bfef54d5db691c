package social

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"social-ingest/internal/acquire"
	"social-ingest/internal/objectstore"
	"social-ingest/internal/retry"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// countingTransport counts round trips before delegating.
type countingTransport struct {
	calls atomic.Int32
	next  http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	next := c.next
	if next == nil {
		next = http.DefaultTransport
	}
	return next.RoundTrip(r)
}

// recordingSleep replaces the retry timer and records requested delays.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

type testEnv struct {
	store     *objectstore.Memory
	acq       *acquire.Acquirer
	transport *countingTransport
	sleeps    *recordingSleep
	resolver  *Resolver
}

func newTestEnv(t *testing.T, apiBase string) *testEnv {
	t.Helper()
	store := objectstore.NewMemory("http://minio.test", "media")
	acq := acquire.New(store, nil, nil, acquire.Config{Timeout: 5 * time.Second})
	transport := &countingTransport{}
	sleeps := &recordingSleep{}

	rc := retry.DefaultConfig("instagram_profile")
	rc.Sleep = sleeps.sleep

	resolver := NewResolver(Config{
		Client:           &http.Client{Transport: transport, Timeout: 5 * time.Second},
		InstagramAPIBase: apiBase,
		Retry:            rc,
	}, acq)

	return &testEnv{store: store, acq: acq, transport: transport, sleeps: sleeps, resolver: resolver}
}

var errDial = errors.New("dial refused")
