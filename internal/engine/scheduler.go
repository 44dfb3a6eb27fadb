package engine

import (
	"context"

	"golang.org/x/time/rate"
)

// limiterFor returns the per-owner maintenance limiter, creating it on first
// use: one maintenance run per interval, burst of one. The map is owned by
// the engine instance and advisory only; losing it on restart just means the
// next ingestion re-triggers maintenance once.
func (e *Engine) limiterFor(ownerID string) *rate.Limiter {
	e.mu.Lock()
	defer e.mu.Unlock()

	lim, ok := e.limiters[ownerID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(e.policy.MaintenanceInterval), 1)
		e.limiters[ownerID] = lim
	}
	return lim
}

// maybeMaintain runs consolidation and retention for the owner when the
// throttle allows. Invoked from the tail of ingestion, never from retrieval.
// Errors are logged and absorbed: a transient maintenance failure must not
// break the primary write path.
func (e *Engine) maybeMaintain(ctx context.Context, ownerID string) {
	if !e.limiterFor(ownerID).Allow() {
		return
	}

	if _, _, err := e.Consolidate(ctx, ownerID); err != nil {
		e.log.Warn("opportunistic consolidation failed", "owner", ownerID, "error", err)
		return
	}
	if _, err := e.Retain(ctx, ownerID); err != nil {
		e.log.Warn("opportunistic retention failed", "owner", ownerID, "error", err)
		return
	}
	e.metrics.RecordMaintenance()
}
