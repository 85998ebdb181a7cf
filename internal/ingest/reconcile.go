package ingest

import (
	"context"
	"time"

	"docvault/internal/logger"
)

// StaleFailer fails documents stuck in processing.
type StaleFailer interface {
	FailStale(ctx context.Context, before time.Time) (int, error)
}

// Reconciler fails documents whose conversion was lost, typically because the process
// that owned it exited. A document counts as lost once it has been processing for
// longer than MaxAge.
type Reconciler struct {
	docs   StaleFailer
	maxAge time.Duration
	now    func() time.Time
}

func NewReconciler(docs StaleFailer, maxAge time.Duration) *Reconciler {
	return &Reconciler{docs: docs, maxAge: maxAge, now: time.Now}
}

// Reconcile runs one sweep and returns the number of documents it failed.
func (r *Reconciler) Reconcile(ctx context.Context) (int, error) {
	n, err := r.docs.FailStale(ctx, r.now().Add(-r.maxAge))
	if err != nil {
		logger.Error("stale_ingestion_sweep_failed", logger.Fields{"error": err})
		return 0, err
	}
	if n > 0 {
		logger.Warn("stale_ingestions_failed", logger.Fields{"count": n, "max_age": r.maxAge.String()})
	}
	return n, nil
}

// Run sweeps immediately and then every interval until ctx is done. A non-positive
// interval sweeps once.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	_, _ = r.Reconcile(ctx)
	if interval <= 0 {
		return
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			_, _ = r.Reconcile(ctx)
		}
	}
}
