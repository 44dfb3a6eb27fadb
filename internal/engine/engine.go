// Package engine implements the tiered, decay-based memory retention engine:
// ingestion, consolidation, retention, retrieval, and the opportunistic
// maintenance scheduler that ties them together.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lethe-mem/lethe/internal/config"
	"github.com/lethe-mem/lethe/internal/store"
)

// Recorder receives engine events for instrumentation. The zero
// implementation drops everything.
type Recorder interface {
	RecordIngest(tier string)
	RecordEviction(reason string, n int)
	RecordPromotion()
	RecordMerge()
	RecordMaintenance()
	RecordContextBuild()
}

type nopRecorder struct{}

func (nopRecorder) RecordIngest(string)        {}
func (nopRecorder) RecordEviction(string, int) {}
func (nopRecorder) RecordPromotion()           {}
func (nopRecorder) RecordMerge()               {}
func (nopRecorder) RecordMaintenance()         {}
func (nopRecorder) RecordContextBuild()        {}

// Engine owns one store and one policy table set. Maintenance throttle state
// lives on the instance, so tests and tenants never share it.
type Engine struct {
	store   store.Store
	policy  config.Policy
	log     *slog.Logger
	metrics Recorder

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	now func() time.Time
}

// New creates an Engine over the given store and policy.
func New(st store.Store, policy config.Policy) *Engine {
	return &Engine{
		store:    st,
		policy:   policy,
		log:      slog.Default(),
		metrics:  nopRecorder{},
		limiters: make(map[string]*rate.Limiter),
		now:      time.Now,
	}
}

// SetLogger replaces the engine's logger.
func (e *Engine) SetLogger(l *slog.Logger) {
	if l != nil {
		e.log = l
	}
}

// SetMetrics configures the instrumentation sink.
func (e *Engine) SetMetrics(r Recorder) {
	if r != nil {
		e.metrics = r
	}
}

func (e *Engine) nowMs() int64 {
	return e.now().UnixMilli()
}

// MaintenanceReport summarizes one consolidation + retention run.
type MaintenanceReport struct {
	Promoted int            `json:"promoted"`
	Merged   int            `json:"merged"`
	Eviction EvictionReport `json:"eviction"`
}

// RunMaintenance runs consolidation then retention for one owner and returns
// what happened. Unlike the opportunistic trigger, errors propagate.
func (e *Engine) RunMaintenance(ctx context.Context, ownerID string) (*MaintenanceReport, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}

	promoted, merged, err := e.Consolidate(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	report, err := e.Retain(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordMaintenance()
	return &MaintenanceReport{Promoted: promoted, Merged: merged, Eviction: report}, nil
}

// OwnerStats describes one owner's memory set.
type OwnerStats struct {
	Total       int            `json:"total"`
	ByCategory  map[string]int `json:"by_category"`
	ByTier      map[string]int `json:"by_tier"`
	PinnedCount int            `json:"pinned_count"`
}

// Stats returns record counts for an owner.
func (e *Engine) Stats(ctx context.Context, ownerID string) (*OwnerStats, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	records, err := e.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("list", err)
	}

	stats := &OwnerStats{
		Total:      len(records),
		ByCategory: make(map[string]int),
		ByTier:     make(map[string]int),
	}
	for i := range records {
		r := &records[i]
		stats.ByCategory[r.Category]++
		stats.ByTier[string(r.Tier)]++
		if r.Exempt() {
			stats.PinnedCount++
		}
	}
	return stats, nil
}

// List returns all records for an owner, for inspection surfaces.
func (e *Engine) List(ctx context.Context, ownerID string) ([]store.Record, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	records, err := e.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr("list", err)
	}
	return records, nil
}

// ForgetAll wipes an owner's memory set. This is the explicit user-initiated
// wipe: the pinned exemption does not apply here.
func (e *Engine) ForgetAll(ctx context.Context, ownerID string) (int, error) {
	if ownerID == "" {
		return 0, ErrOwnerRequired
	}
	n, err := e.store.DeleteByOwner(ctx, ownerID)
	if err != nil {
		return 0, storeErr("delete all", err)
	}
	e.log.Info("forgot all memories", "owner", ownerID, "count", n)
	return n, nil
}

// DeleteOne removes a single record by (category, key). Returns false when
// nothing matched.
func (e *Engine) DeleteOne(ctx context.Context, ownerID, category, key string) (bool, error) {
	if ownerID == "" {
		return false, ErrOwnerRequired
	}
	if category == "" || key == "" {
		return false, ErrBadSelector
	}

	rec, err := e.store.Get(ctx, ownerID, category, key)
	if err != nil {
		return false, storeErr("get", err)
	}
	if rec == nil {
		return false, nil
	}
	if err := e.store.Delete(ctx, ownerID, rec.ID); err != nil {
		return false, storeErr("delete", err)
	}
	return true, nil
}
