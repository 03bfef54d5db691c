package ingest

import (
	"context"
	"errors"
	"net/url"
	"time"

	"social-ingest/internal/database"
	"social-ingest/internal/logging"
	"social-ingest/internal/metrics"
	"social-ingest/internal/objectstore"
	"social-ingest/internal/social"
)

var log = logging.For("ingest")

// ledgerTimeout bounds each best-effort ledger write.
const ledgerTimeout = 5 * time.Second

// Ledger tracks deletions. A nil Ledger disables tracking and sweeping.
type Ledger interface {
	RecordDeleted(ctx context.Context, key string) error
	MarkPendingDelete(ctx context.Context, key, reason string) error
	PendingDeletes(ctx context.Context, limit int) ([]database.Object, error)
	SetLastSweep(ctx context.Context, t time.Time) error
}

// Orchestrator runs ingestions and cleanups.
type Orchestrator struct {
	resolver *social.Resolver
	store    objectstore.Store
	ledger   Ledger
	workers  int
}

// New wires an Orchestrator. workers caps concurrent deletions; zero uses
// the I/O default.
func New(resolver *social.Resolver, store objectstore.Store, ledger Ledger, workers int) *Orchestrator {
	return &Orchestrator{
		resolver: resolver,
		store:    store,
		ledger:   ledger,
		workers:  workers,
	}
}

// Ingest resolves rawURL and returns its profile record. Upstream, media
// and storage failures degrade the record; only a malformed URL is an
// error (wrapping social.ErrInvalidInput).
func (o *Orchestrator) Ingest(ctx context.Context, rawURL string) (*social.ProfileRecord, error) {
	strategy, u, err := o.resolver.Resolve(rawURL)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues("unknown", "invalid").Inc()
		return nil, err
	}
	return o.run(ctx, strategy, u), nil
}

// IngestOpenGraph forces the Open Graph strategy regardless of host.
func (o *Orchestrator) IngestOpenGraph(ctx context.Context, rawURL string) (*social.ProfileRecord, error) {
	u, err := social.ParseURL(rawURL)
	if err != nil {
		metrics.IngestionsTotal.WithLabelValues(string(social.PlatformOpenGraph), "invalid").Inc()
		return nil, err
	}
	return o.run(ctx, o.resolver.For(social.PlatformOpenGraph), u), nil
}

func (o *Orchestrator) run(ctx context.Context, strategy social.Strategy, u *url.URL) *social.ProfileRecord {
	platform := string(strategy.Platform())
	start := time.Now()

	out := strategy.Fetch(ctx, u)

	metrics.StrategyDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
	if out.Degraded() {
		metrics.IngestionsTotal.WithLabelValues(platform, "degraded").Inc()
		if errors.Is(out.Reason, context.Canceled) {
			log.Debug("%s ingestion of %s cancelled", platform, u)
		} else {
			log.Warn("%s ingestion of %s degraded: %v", platform, u, out.Reason)
		}
	} else {
		metrics.IngestionsTotal.WithLabelValues(platform, "success").Inc()
		log.Info("ingested %s via %s (%d images) in %v", u, platform, len(out.Record.MediaRefs), time.Since(start).Round(time.Millisecond))
	}
	return out.Record
}

// ledgerCtx detaches ledger writes from request cancellation.
func ledgerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
}
