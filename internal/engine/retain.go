package engine

import (
	"context"
	"sort"

	"github.com/lethe-mem/lethe/internal/decay"
	"github.com/lethe-mem/lethe/internal/store"
)

// Eviction reasons, also used as metric labels.
const (
	reasonTTL         = "ttl"
	reasonCategoryCap = "category_cap"
	reasonGlobalCap   = "global_cap"
	reasonPruned      = "pruned"
	reasonWorkingTrim = "working_trim"
)

// EvictionReport counts what each retention sub-pass removed.
type EvictionReport struct {
	Expired         int `json:"expired"`
	CategoryEvicted int `json:"category_evicted"`
	GlobalEvicted   int `json:"global_evicted"`
	Pruned          int `json:"pruned"`
	WorkingTrimmed  int `json:"working_trimmed"`
}

// Total returns the total number of records removed.
func (r EvictionReport) Total() int {
	return r.Expired + r.CategoryEvicted + r.GlobalEvicted + r.Pruned + r.WorkingTrimmed
}

// Retain enforces TTL expiry, per-category caps, the global cap, decay-based
// pruning of the semantic tier, and working-tier trimming, in that order.
// Pinned records (flag or tier) are exempt from every sub-pass. Running with
// nothing to do is not an error.
func (e *Engine) Retain(ctx context.Context, ownerID string) (EvictionReport, error) {
	var report EvictionReport
	if ownerID == "" {
		return report, ErrOwnerRequired
	}

	records, err := e.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return report, storeErr("list", err)
	}

	now := e.nowMs()

	// Live set: everything eviction may touch.
	var live []store.Record
	for i := range records {
		if !records[i].Exempt() {
			live = append(live, records[i])
		}
	}

	// 1. TTL expiry. An explicit expires_at overrides the category policy;
	// TTL 0 means the category never expires.
	var kept []store.Record
	for i := range live {
		r := &live[i]
		expired := false
		if r.ExpiresAt > 0 {
			expired = now >= r.ExpiresAt
		} else if ttl := e.policy.TTLFor(r.Category); ttl > 0 {
			expired = now-r.UpdatedAt > ttl.Milliseconds()
		}
		if expired {
			if err := e.store.Delete(ctx, ownerID, r.ID); err != nil {
				return report, storeErr("delete expired", err)
			}
			report.Expired++
			continue
		}
		kept = append(kept, *r)
	}
	live = kept

	// 2. Per-category caps: oldest-by-updated_at overflow goes first.
	byCategory := make(map[string][]store.Record)
	for _, r := range live {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}
	evicted := make(map[string]bool)
	for cat, recs := range byCategory {
		limit := e.policy.CapFor(cat)
		if limit <= 0 || len(recs) <= limit {
			continue
		}
		sort.Slice(recs, func(i, j int) bool { return recs[i].UpdatedAt < recs[j].UpdatedAt })
		for _, r := range recs[:len(recs)-limit] {
			if err := e.store.Delete(ctx, ownerID, r.ID); err != nil {
				return report, storeErr("delete over category cap", err)
			}
			evicted[r.ID] = true
			report.CategoryEvicted++
		}
	}
	live = without(live, evicted)

	// 3. Global cap backstop.
	if e.policy.TotalCap > 0 && len(live) > e.policy.TotalCap {
		sort.Slice(live, func(i, j int) bool { return live[i].UpdatedAt < live[j].UpdatedAt })
		overflow := live[:len(live)-e.policy.TotalCap]
		evicted = make(map[string]bool)
		for _, r := range overflow {
			if err := e.store.Delete(ctx, ownerID, r.ID); err != nil {
				return report, storeErr("delete over global cap", err)
			}
			evicted[r.ID] = true
			report.GlobalEvicted++
		}
		live = without(live, evicted)
	}

	// 4. Decay-based pruning of the semantic tier: low-importance facts
	// that haven't been touched in a long time quietly disappear.
	evicted = make(map[string]bool)
	for i := range live {
		r := &live[i]
		if r.Tier != store.TierSemantic {
			continue
		}
		activation := decay.Activation(r.Strength, r.RefTime(), now, e.policy.TauSemantic)
		if activation < e.policy.PruneActivation && r.Importance < e.policy.PruneImportance {
			if err := e.store.Delete(ctx, ownerID, r.ID); err != nil {
				return report, storeErr("delete pruned", err)
			}
			evicted[r.ID] = true
			report.Pruned++
		}
	}
	live = without(live, evicted)

	// Working-tier trim: the scratchpad keeps only the most recent N.
	var working []store.Record
	for _, r := range live {
		if r.Tier == store.TierWorking {
			working = append(working, r)
		}
	}
	if len(working) > e.policy.WorkingKeep {
		sort.Slice(working, func(i, j int) bool { return working[i].LastSeenAt > working[j].LastSeenAt })
		for _, r := range working[e.policy.WorkingKeep:] {
			if err := e.store.Delete(ctx, ownerID, r.ID); err != nil {
				return report, storeErr("trim working", err)
			}
			report.WorkingTrimmed++
		}
	}

	e.recordEvictions(report)
	if report.Total() > 0 {
		e.log.Info("retention pass", "owner", ownerID,
			"expired", report.Expired, "category_evicted", report.CategoryEvicted,
			"global_evicted", report.GlobalEvicted, "pruned", report.Pruned,
			"working_trimmed", report.WorkingTrimmed)
	}
	return report, nil
}

func (e *Engine) recordEvictions(r EvictionReport) {
	e.metrics.RecordEviction(reasonTTL, r.Expired)
	e.metrics.RecordEviction(reasonCategoryCap, r.CategoryEvicted)
	e.metrics.RecordEviction(reasonGlobalCap, r.GlobalEvicted)
	e.metrics.RecordEviction(reasonPruned, r.Pruned)
	e.metrics.RecordEviction(reasonWorkingTrim, r.WorkingTrimmed)
}

func without(records []store.Record, gone map[string]bool) []store.Record {
	if len(gone) == 0 {
		return records
	}
	var out []store.Record
	for _, r := range records {
		if !gone[r.ID] {
			out = append(out, r)
		}
	}
	return out
}
