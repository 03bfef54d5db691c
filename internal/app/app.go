package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"social-ingest/internal/acquire"
	"social-ingest/internal/database"
	"social-ingest/internal/ingest"
	"social-ingest/internal/logging"
	"social-ingest/internal/objectstore"
	"social-ingest/internal/social"
	"social-ingest/internal/startup"
)

var log = logging.For("app")

// bucketTimeout bounds the startup bucket check.
const bucketTimeout = 30 * time.Second

// Options adjusts how the pipeline is built.
type Options struct {
	// Gate is waited on before every image decode.
	Gate acquire.Gate
	// RequireLedger makes a ledger that cannot be opened an error instead
	// of a warning.
	RequireLedger bool
	// SkipBucketCheck leaves the bucket unverified at startup.
	SkipBucketCheck bool
}

// Services is the wired pipeline.
type Services struct {
	Store objectstore.Store
	// Ledger is nil when the ledger is disabled.
	Ledger   *database.Database
	Acquirer *acquire.Acquirer
	Resolver *social.Resolver
	Orch     *ingest.Orchestrator
}

// NewStore builds the configured object store. For S3 it verifies the
// bucket, creating it when missing, unless skipCheck is set.
func NewStore(ctx context.Context, cfg startup.StorageConfig, skipCheck bool) (objectstore.Store, error) {
	switch cfg.Backend {
	case startup.BackendMemory:
		return objectstore.NewMemory(cfg.PublicURL, cfg.Bucket), nil
	case startup.BackendS3:
		gw, err := objectstore.New(ctx, objectstore.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			PublicURL: cfg.PublicURL,
			URLMode:   cfg.URLMode,
		})
		if err != nil {
			return nil, err
		}
		if skipCheck {
			return gw, nil
		}
		bctx, cancel := context.WithTimeout(ctx, bucketTimeout)
		defer cancel()
		if err := gw.EnsureBucket(bctx); err != nil {
			_ = gw.Close()
			return nil, fmt.Errorf("failed to verify bucket %q: %w", cfg.Bucket, err)
		}
		return gw, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Build wires the pipeline from cfg. The caller must Close the result.
func Build(ctx context.Context, cfg *startup.Config, opts Options) (*Services, error) {
	store, err := NewStore(ctx, cfg.Storage, opts.SkipBucketCheck)
	if err != nil {
		return nil, err
	}

	var db *database.Database
	if cfg.LedgerEnabled {
		start := time.Now()
		db, err = database.Open(ctx, cfg.DatabaseDir)
		switch {
		case err == nil:
			startup.LogLedgerInit(db.Path(), time.Since(start))
		case opts.RequireLedger:
			_ = store.Close()
			return nil, fmt.Errorf("failed to open ledger: %w", err)
		default:
			log.Warn("ledger disabled: %v", err)
			db = nil
		}
	} else if opts.RequireLedger {
		_ = store.Close()
		return nil, errors.New("ledger is disabled: DATABASE_DIR is not writable")
	}

	// Untyped nils keep the optional ledger interfaces nil when disabled.
	var (
		acqLedger    acquire.Ledger
		ingestLedger ingest.Ledger
	)
	if db != nil {
		acqLedger = db
		ingestLedger = db
	}

	acq := acquire.New(store, nil, acqLedger, acquire.Config{
		Timeout:      cfg.DownloadTimeout,
		Workers:      cfg.MediaWorkers,
		Gate:         opts.Gate,
		BlockPrivate: !cfg.AllowPrivateFetch,
	})

	resolver := social.NewResolver(social.Config{
		FetchTimeout:   cfg.FetchTimeout,
		InstagramAppID: cfg.InstagramAppID,
		CacheSize:      cfg.MetadataCacheSize,
		CacheTTL:       cfg.MetadataCacheTTL,
	}, acq)

	return &Services{
		Store:    store,
		Ledger:   db,
		Acquirer: acq,
		Resolver: resolver,
		Orch:     ingest.New(resolver, store, ingestLedger, cfg.MediaWorkers),
	}, nil
}

// Close releases the ledger and the object store.
func (s *Services) Close() error {
	var errs []error
	if s.Ledger != nil {
		if err := s.Ledger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("ledger: %w", err))
		}
	}
	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	return errors.Join(errs...)
}
