package ingest

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"social-ingest/internal/metrics"
	"social-ingest/internal/objectstore"
	"social-ingest/internal/workers"

	"golang.org/x/sync/errgroup"
)

// Result tallies a cleanup or sweep.
type Result struct {
	Deleted int `json:"deleted"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type tally struct {
	deleted, skipped, failed atomic.Int64
}

func (t *tally) add(status string) {
	metrics.CleanupDeletionsTotal.WithLabelValues(status).Inc()
	switch status {
	case "deleted":
		t.deleted.Add(1)
	case "skipped":
		t.skipped.Add(1)
	default:
		t.failed.Add(1)
	}
}

func (t *tally) result() Result {
	return Result{
		Deleted: int(t.deleted.Load()),
		Skipped: int(t.skipped.Load()),
		Failed:  int(t.failed.Load()),
	}
}

// Cleanup deletes the objects behind previously issued reference URLs.
// Only keys under social/ are touched; anything else (user uploads, foreign
// URLs, garbage) is skipped. Deletions run concurrently and one failure
// never stops the others.
func (o *Orchestrator) Cleanup(ctx context.Context, urls []string) Result {
	keys := make([]string, 0, len(urls))
	seen := make(map[string]bool, len(urls))
	var t tally

	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key, err := o.store.KeyFromURL(raw)
		if err != nil || !objectstore.IsSocialKey(key) {
			log.Debug("cleanup: skipping %q", raw)
			t.add("skipped")
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	o.deleteAll(ctx, keys, &t)

	res := t.result()
	log.Info("cleanup: %d deleted, %d skipped, %d failed", res.Deleted, res.Skipped, res.Failed)
	return res
}

func (o *Orchestrator) deleteAll(ctx context.Context, keys []string, t *tally) {
	g := new(errgroup.Group)
	g.SetLimit(workers.ForFanOut(len(keys), o.workers))
	for _, key := range keys {
		g.Go(func() error {
			t.add(o.deleteOne(ctx, key))
			return nil
		})
	}
	_ = g.Wait()
}

// deleteOne removes key and returns the cleanup status label.
func (o *Orchestrator) deleteOne(ctx context.Context, key string) string {
	if err := o.Remove(ctx, key); err != nil {
		log.Warn("cleanup: failed to delete %s: %v", key, err)
		return "failed"
	}
	log.Debug("cleanup: deleted %s", key)
	return "deleted"
}

// Remove deletes one object whatever its prefix and updates the ledger: a
// failed delete is left pending for the sweeper. Callers own authorization.
func (o *Orchestrator) Remove(ctx context.Context, key string) error {
	err := o.store.Delete(ctx, key)
	if o.ledger == nil {
		return err
	}

	lctx, cancel := ledgerCtx(ctx)
	defer cancel()

	if err != nil {
		if lerr := o.ledger.MarkPendingDelete(lctx, key, err.Error()); lerr != nil {
			log.Warn("ledger: %v", lerr)
		}
		return err
	}
	if lerr := o.ledger.RecordDeleted(lctx, key); lerr != nil {
		log.Warn("ledger: %v", lerr)
	}
	return nil
}

// SweepBatch caps how many pending deletions one sweep retries.
const SweepBatch = 500

// Sweep retries deletions the ledger holds as pending_delete. Without a
// ledger it does nothing.
func (o *Orchestrator) Sweep(ctx context.Context) (Result, error) {
	if o.ledger == nil {
		return Result{}, nil
	}

	pending, err := o.ledger.PendingDeletes(ctx, SweepBatch)
	if err != nil {
		return Result{}, err
	}

	keys := make([]string, 0, len(pending))
	for _, obj := range pending {
		keys = append(keys, obj.Key)
	}

	var t tally
	o.deleteAll(ctx, keys, &t)
	metrics.SweepRunsTotal.Inc()

	lctx, cancel := ledgerCtx(ctx)
	defer cancel()
	if err := o.ledger.SetLastSweep(lctx, time.Now()); err != nil {
		log.Warn("ledger: %v", err)
	}

	res := t.result()
	if len(keys) > 0 {
		log.Info("sweep: %d of %d pending deletions cleared, %d still failing", res.Deleted, len(keys), res.Failed)
	} else {
		log.Debug("sweep: nothing pending")
	}
	return res, nil
}
