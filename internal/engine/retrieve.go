package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lethe-mem/lethe/internal/decay"
	"github.com/lethe-mem/lethe/internal/store"
)

// Composite score weights for semantic retrieval.
const (
	weightRelevance  = 0.55
	weightActivation = 0.30
	weightImportance = 0.15
)

// BuildContext ranks an owner's records against the query and renders a
// small context block with Pinned, Semantic and Working sections. Selected
// semantic records are lightly reinforced; the output is deterministic given
// store state and current time. Returns "" when nothing qualifies.
func (e *Engine) BuildContext(ctx context.Context, ownerID, query string) (string, error) {
	if ownerID == "" {
		return "", ErrOwnerRequired
	}

	records, err := e.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", storeErr("list", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	now := e.nowMs()

	var pinned, working []store.Record
	type scored struct {
		rec   store.Record
		score float64
	}
	var semantic []scored

	for i := range records {
		r := records[i]
		switch {
		case r.Tier == store.TierPinned:
			pinned = append(pinned, r)
		case r.Tier == store.TierSemantic:
			relevance := queryOverlap(query, r.Value)
			activation := decay.Activation(r.Strength, r.RefTime(), now, e.policy.TauSemantic)
			score := weightRelevance*relevance + weightActivation*activation + weightImportance*r.Importance
			semantic = append(semantic, scored{rec: r, score: score})
		case r.Tier == store.TierWorking:
			working = append(working, r)
		}
	}

	// Pinned: importance, then recency.
	sort.Slice(pinned, func(i, j int) bool {
		if pinned[i].Importance != pinned[j].Importance {
			return pinned[i].Importance > pinned[j].Importance
		}
		return pinned[i].LastSeenAt > pinned[j].LastSeenAt
	})
	if len(pinned) > e.policy.PinnedLimit {
		pinned = pinned[:e.policy.PinnedLimit]
	}

	// Semantic: composite score, deterministic tie-break on recency then key.
	sort.Slice(semantic, func(i, j int) bool {
		if semantic[i].score != semantic[j].score {
			return semantic[i].score > semantic[j].score
		}
		if semantic[i].rec.UpdatedAt != semantic[j].rec.UpdatedAt {
			return semantic[i].rec.UpdatedAt > semantic[j].rec.UpdatedAt
		}
		return semantic[i].rec.Key < semantic[j].rec.Key
	})
	if len(semantic) > e.policy.SemanticLimit {
		semantic = semantic[:e.policy.SemanticLimit]
	}

	// Retrieval is a light touch, not a new observation.
	for i := range semantic {
		r := &semantic[i].rec
		if err := e.store.Touch(ctx, r.OwnerID, r.Category, r.Key, e.policy.EtaInferred); err != nil {
			return "", storeErr("reinforce retrieved", err)
		}
	}

	// Working: the single most recent scratchpad entry, unreinforced.
	sort.Slice(working, func(i, j int) bool { return working[i].LastSeenAt > working[j].LastSeenAt })
	if len(working) > e.policy.WorkingLimit {
		working = working[:e.policy.WorkingLimit]
	}

	if len(pinned) == 0 && len(semantic) == 0 && len(working) == 0 {
		return "", nil
	}

	var b strings.Builder
	if len(pinned) > 0 {
		b.WriteString("### Pinned\n")
		for _, r := range pinned {
			fmt.Fprintf(&b, "- %s\n", r.Value)
		}
	}
	if len(semantic) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("### Semantic\n")
		for _, s := range semantic {
			if s.rec.Confidence < e.policy.UncertainBelow {
				fmt.Fprintf(&b, "- %s (uncertain)\n", s.rec.Value)
			} else {
				fmt.Fprintf(&b, "- %s\n", s.rec.Value)
			}
		}
	}
	if len(working) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("### Working\n")
		for _, r := range working {
			fmt.Fprintf(&b, "- %s\n", r.Value)
		}
	}

	e.metrics.RecordContextBuild()
	return b.String(), nil
}
