package engine

import (
	"context"
	"sort"
	"strings"

	"github.com/lethe-mem/lethe/internal/decay"
	"github.com/lethe-mem/lethe/internal/store"
)

// triggerWords mark statements worth keeping long-term regardless of their
// baseline importance: durable preferences and boundaries.
var triggerWords = []string{
	"prefer", "always", "never", "boundary", "boundaries",
	"favorite", "allergic", "important", "hate", "love",
}

// Consolidate promotes repeated, important working records into the semantic
// tier, and merges near-duplicates into existing semantic records via
// reinforcement instead of creating new ones. Returns (promoted, merged).
//
// Only a bounded window of the most-recently-seen working records is
// examined, so the pass stays cheap no matter how much history an owner has.
func (e *Engine) Consolidate(ctx context.Context, ownerID string) (int, int, error) {
	if ownerID == "" {
		return 0, 0, ErrOwnerRequired
	}

	records, err := e.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, 0, storeErr("list", err)
	}

	var working, semantic []store.Record
	for i := range records {
		switch records[i].Tier {
		case store.TierWorking:
			working = append(working, records[i])
		case store.TierSemantic:
			semantic = append(semantic, records[i])
		}
	}

	sort.Slice(working, func(i, j int) bool {
		return working[i].LastSeenAt > working[j].LastSeenAt
	})
	if len(working) > e.policy.WorkingWindow {
		working = working[:e.policy.WorkingWindow]
	}

	now := e.nowMs()
	promoted, merged := 0, 0
	gone := make(map[string]bool)

	for i := range working {
		w := &working[i]

		activation := decay.Activation(w.Strength, w.RefTime(), now, e.policy.TauWorking)

		// Verbatim repeats collapse into one row, so the observation
		// counter stands in for them alongside lexical siblings. Rows an
		// earlier iteration promoted away no longer count.
		repeats := w.AccessCount
		for j := range working {
			if j == i || gone[working[j].ID] {
				continue
			}
			if overlap(w.Value, working[j].Value) >= e.policy.RepeatOverlap {
				repeats++
			}
		}

		importance := w.Importance
		if hasTriggerWord(w.Value) && importance < e.policy.TriggerImportance {
			importance = e.policy.TriggerImportance
		}

		// Best existing semantic match wins over creating a duplicate.
		bestOverlap, bestIdx := 0.0, -1
		for j := range semantic {
			if ov := overlap(w.Value, semantic[j].Value); ov > bestOverlap {
				bestOverlap, bestIdx = ov, j
			}
		}

		if bestIdx >= 0 && bestOverlap >= e.policy.MergeOverlap {
			match := semantic[bestIdx]
			if err := e.store.Upsert(ctx, &match, e.policy.EtaInferred); err != nil {
				return promoted, merged, storeErr("reinforce semantic", err)
			}
			semantic[bestIdx] = match
			merged++
			e.metrics.RecordMerge()
			e.log.Debug("merged working into semantic",
				"owner", ownerID, "key", w.Key, "into", match.Key, "overlap", bestOverlap)
			continue
		}

		if repeats >= e.policy.MinRepeats &&
			importance >= e.policy.MinImportance &&
			activation >= e.policy.MinActivation {

			note := &store.Record{
				OwnerID:    ownerID,
				Category:   categorySemantic,
				Key:        hashKey(w.Value),
				Value:      w.Value,
				Tier:       store.TierSemantic,
				Confidence: 0.55,
				Strength:   0.55,
				Importance: decay.Clamp01(importance),
				SourceType: store.SourceInferred,
			}
			if err := e.store.Upsert(ctx, note, e.policy.EtaInferred); err != nil {
				return promoted, merged, storeErr("promote", err)
			}
			if err := e.store.Delete(ctx, ownerID, w.ID); err != nil {
				return promoted, merged, storeErr("delete promoted working", err)
			}
			gone[w.ID] = true
			semantic = append(semantic, *note)
			promoted++
			e.metrics.RecordPromotion()
			e.log.Debug("promoted working to semantic",
				"owner", ownerID, "key", note.Key, "repeats", repeats, "importance", importance)
		}
	}

	return promoted, merged, nil
}

func hasTriggerWord(value string) bool {
	lower := strings.ToLower(value)
	for _, w := range triggerWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
