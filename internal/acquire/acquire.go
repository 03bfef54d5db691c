package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"social-ingest/internal/database"
	"social-ingest/internal/logging"
	"social-ingest/internal/media"
	"social-ingest/internal/metrics"
	"social-ingest/internal/objectstore"
	"social-ingest/internal/workers"

	"golang.org/x/sync/errgroup"
)

var log = logging.For("acquire")

// BrowserUserAgent is sent on every outbound request; several CDNs refuse
// the Go default.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 25 << 20
	DefaultWorkers  = 16
)

var (
	// ErrDownload is returned when the source cannot be fetched.
	ErrDownload = errors.New("media download failed")
	// ErrStorage is returned when the object store rejects the asset.
	ErrStorage = errors.New("media storage failed")
)

// Ledger records stored objects. Failures are logged, never propagated.
type Ledger interface {
	RecordStored(ctx context.Context, obj database.Object) error
}

// Config tunes an Acquirer. Zero values take the defaults.
type Config struct {
	// Timeout bounds each download.
	Timeout time.Duration
	// MaxBytes caps the size of a downloaded source.
	MaxBytes int64
	// Workers caps concurrent acquisitions in one fan-out.
	Workers int
	// URLTTL is the validity of issued reference URLs.
	URLTTL time.Duration
	// Client overrides the HTTP client used for downloads.
	Client *http.Client
	// Gate, when set, is waited on before every decode.
	Gate Gate
	// BlockPrivate refuses downloads from loopback, private and link-local
	// addresses. Ignored when Client is set.
	BlockPrivate bool
}

// Gate holds back decode work under memory pressure. *memory.Monitor
// satisfies it.
type Gate interface {
	Wait(ctx context.Context) error
}

// Request describes one asset to rehost.
type Request struct {
	SourceURL string
	Class     media.AssetClass
	// Group is the key segment under social/. Defaults to the class.
	Group string
	// Referer is sent with the download when set.
	Referer string
}

// Result pairs a Request with its outcome. Exactly one of Ref and Err is set.
type Result struct {
	Request Request
	Ref     *media.Ref
	Err     error
}

// Acquirer downloads, transcodes and stores media. It is safe for
// concurrent use.
type Acquirer struct {
	store      objectstore.Store
	transcoder *media.Transcoder
	ledger     Ledger
	client     *http.Client
	cfg        Config
}

// New returns an Acquirer writing to store. ledger may be nil.
func New(store objectstore.Store, transcoder *media.Transcoder, ledger Ledger, cfg Config) *Acquirer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.URLTTL <= 0 {
		cfg.URLTTL = objectstore.DefaultPresignTTL
	}
	client := cfg.Client
	switch {
	case client != nil:
	case cfg.BlockPrivate:
		client = publicOnlyClient()
	default:
		client = &http.Client{}
	}
	if transcoder == nil {
		transcoder = media.NewTranscoder()
	}
	return &Acquirer{
		store:      store,
		transcoder: transcoder,
		ledger:     ledger,
		client:     client,
		cfg:        cfg,
	}
}

// Store returns the object store the Acquirer writes to.
func (a *Acquirer) Store() objectstore.Store {
	return a.store
}

// Acquire rehosts one asset. Any failure is logged and yields nil.
func (a *Acquirer) Acquire(ctx context.Context, req Request) *media.Ref {
	ref, err := a.Fetch(ctx, req)
	if err != nil {
		log.Warn("%s asset %s dropped: %v", req.Class, req.SourceURL, err)
		return nil
	}
	return ref
}

// AcquireEach rehosts every request concurrently and returns one Result per
// request, in request order. A failing branch never cancels its siblings.
func (a *Acquirer) AcquireEach(ctx context.Context, reqs []Request) []Result {
	results := make([]Result, len(reqs))
	if len(reqs) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(workers.ForFanOut(len(reqs), a.cfg.Workers))

	for i, req := range reqs {
		g.Go(func() error {
			ref, err := a.Fetch(ctx, req)
			if err != nil {
				log.Warn("%s asset %s dropped: %v", req.Class, req.SourceURL, err)
			}
			results[i] = Result{Request: req, Ref: ref, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// AcquireAll rehosts every request concurrently and returns the successful
// references in request order.
func (a *Acquirer) AcquireAll(ctx context.Context, reqs []Request) []*media.Ref {
	return Successful(a.AcquireEach(ctx, reqs))
}

// Successful filters results to their references, keeping order.
func Successful(results []Result) []*media.Ref {
	refs := make([]*media.Ref, 0, len(results))
	for _, r := range results {
		if r.Ref != nil {
			refs = append(refs, r.Ref)
		}
	}
	return refs
}

// Fetch rehosts one asset and reports why it failed.
func (a *Acquirer) Fetch(ctx context.Context, req Request) (*media.Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := a.Download(ctx, req)
	if err != nil {
		metrics.MediaAcquisitionsTotal.WithLabelValues(string(req.Class), "download_error").Inc()
		return nil, err
	}

	group := req.Group
	if group == "" {
		group = string(req.Class)
	}

	return a.Put(ctx, data, req.Class, req.SourceURL, func(ext string) string {
		return objectstore.SocialKey(group, ext)
	}, a.cfg.URLTTL)
}

// Put transcodes data per class, stores it under keyFor(ext) and returns
// its reference valid for ttl.
func (a *Acquirer) Put(ctx context.Context, data []byte, class media.AssetClass, sourceURL string, keyFor func(ext string) string, ttl time.Duration) (*media.Ref, error) {
	return a.save(ctx, class, sourceURL, keyFor, ttl, func() (*media.Output, error) {
		return a.transcoder.Transcode(data, class, sourceURL)
	})
}

// Upload is a file received from a client.
type Upload struct {
	Data     []byte
	Filename string
	// ContentType is the type the client declared for the file.
	ContentType string
}

// PutUpload is Put for client uploads, whose keys are not under social/.
// The declared content type is trusted before the filename.
func (a *Acquirer) PutUpload(ctx context.Context, up Upload, class media.AssetClass, keyFor func(ext string) string, ttl time.Duration) (*media.Ref, error) {
	return a.save(ctx, class, up.Filename, keyFor, ttl, func() (*media.Output, error) {
		return a.transcoder.TranscodeUpload(up.Data, class, up.Filename, up.ContentType)
	})
}

func (a *Acquirer) save(ctx context.Context, class media.AssetClass, sourceURL string, keyFor func(ext string) string, ttl time.Duration, transcode func() (*media.Output, error)) (*media.Ref, error) {
	if a.cfg.Gate != nil {
		if err := a.cfg.Gate.Wait(ctx); err != nil {
			return nil, err
		}
	}
	out, err := transcode()
	if err != nil {
		metrics.MediaAcquisitionsTotal.WithLabelValues(string(class), "transcode_error").Inc()
		return nil, err
	}

	key := keyFor(out.Ext)
	if err := a.store.Put(ctx, key, out.Data, out.ContentType); err != nil {
		metrics.MediaAcquisitionsTotal.WithLabelValues(string(class), "storage_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	if ttl <= 0 {
		ttl = a.cfg.URLTTL
	}
	publicURL, err := a.store.ReferenceURL(ctx, key, ttl)
	if err != nil {
		metrics.MediaAcquisitionsTotal.WithLabelValues(string(class), "storage_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	a.record(ctx, database.Object{
		Key:         key,
		Class:       string(class),
		SourceURL:   sourceURL,
		ContentType: out.ContentType,
		Size:        int64(len(out.Data)),
	})

	status := "success"
	if out.Passthrough {
		status = "passthrough"
	}
	metrics.MediaAcquisitionsTotal.WithLabelValues(string(class), status).Inc()
	log.Debug("stored %s (%s, %d bytes) from %s", key, out.ContentType, len(out.Data), sourceURL)

	return &media.Ref{
		SourceURL:   sourceURL,
		StoredKey:   key,
		PublicURL:   publicURL,
		ContentType: out.ContentType,
	}, nil
}

func (a *Acquirer) record(ctx context.Context, obj database.Object) {
	if a.ledger == nil {
		return
	}
	// The object is already stored; a cancelled request must not lose the row.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.ledger.RecordStored(ctx, obj); err != nil {
		log.Warn("ledger: %v", err)
	}
}

// Download fetches req.SourceURL with browser headers, bounded by the
// configured timeout and size cap. It returns the body and the upstream
// Content-Type.
func (a *Acquirer) Download(ctx context.Context, req Request) ([]byte, string, error) {
	if !strings.HasPrefix(req.SourceURL, "http://") && !strings.HasPrefix(req.SourceURL, "https://") {
		return nil, "", fmt.Errorf("%w: unsupported source %q", ErrDownload, req.SourceURL)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.SourceURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	httpReq.Header.Set("User-Agent", BrowserUserAgent)
	httpReq.Header.Set("Accept", "image/*")
	if req.Referer != "" {
		httpReq.Header.Set("Referer", req.Referer)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("media", "error").Inc()
		return nil, "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug("failed to close response body: %v", err)
		}
	}()

	metrics.UpstreamRequestsTotal.WithLabelValues("media", metrics.StatusClass(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: %s returned %d", ErrDownload, req.SourceURL, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, a.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if int64(len(data)) > a.cfg.MaxBytes {
		return nil, "", fmt.Errorf("%w: %s exceeds %d bytes", ErrDownload, req.SourceURL, a.cfg.MaxBytes)
	}

	if req.Class != "" {
		metrics.MediaDownloadBytes.WithLabelValues(string(req.Class)).Observe(float64(len(data)))
	}
	return data, resp.Header.Get("Content-Type"), nil
}
