package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lethe-mem/lethe/internal/config"
	"github.com/lethe-mem/lethe/internal/store"
)

func TestBuildContextSectionsInOrder(t *testing.T) {
	eng, db := testEngine(t, config.DefaultPolicy())
	ctx := context.Background()

	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "user", Key: "bday",
		Value: "birthday is May 5", Tier: store.TierPinned, Pinned: true,
		Confidence: 1, Strength: 1, Importance: 0.95}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "veg",
		Value: "prefers vegetarian food", Tier: store.TierSemantic,
		Confidence: 0.9, Strength: 0.7, Importance: 0.6}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "working", Key: "w",
		Value: "planning dinner tonight", Tier: store.TierWorking,
		Confidence: 0.5, Strength: 0.5, Importance: 0.25}, 0)

	out, err := eng.BuildContext(ctx, "u1", "what should we eat")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	iPinned := strings.Index(out, "### Pinned")
	iSemantic := strings.Index(out, "### Semantic")
	iWorking := strings.Index(out, "### Working")
	if iPinned < 0 || iSemantic < 0 || iWorking < 0 {
		t.Fatalf("missing section in output:\n%s", out)
	}
	if !(iPinned < iSemantic && iSemantic < iWorking) {
		t.Errorf("sections out of order:\n%s", out)
	}
	for _, want := range []string{
		"- birthday is May 5",
		"- prefers vegetarian food",
		"- planning dinner tonight",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildContextUncertainTag(t *testing.T) {
	eng, db := testEngine(t, config.DefaultPolicy())
	ctx := context.Background()

	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "guess",
		Value: "might be learning the piano", Tier: store.TierSemantic,
		Confidence: 0.55, Strength: 0.7, Importance: 0.5}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "sure",
		Value: "teaches piano on weekends", Tier: store.TierSemantic,
		Confidence: 0.95, Strength: 0.7, Importance: 0.5}, 0)

	out, err := eng.BuildContext(ctx, "u1", "piano")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if !strings.Contains(out, "- might be learning the piano (uncertain)") {
		t.Errorf("low-confidence record not tagged:\n%s", out)
	}
	if strings.Contains(out, "- teaches piano on weekends (uncertain)") {
		t.Errorf("high-confidence record tagged:\n%s", out)
	}
}

func TestBuildContextRanksByRelevance(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.SemanticLimit = 1
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "cats",
		Value: "has two cats at home", Tier: store.TierSemantic,
		Confidence: 0.9, Strength: 0.7, Importance: 0.5}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "hiking",
		Value: "enjoys hiking on weekends", Tier: store.TierSemantic,
		Confidence: 0.9, Strength: 0.7, Importance: 0.5}, 0)

	out, err := eng.BuildContext(ctx, "u1", "tell me about hiking trails")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if !strings.Contains(out, "enjoys hiking on weekends") {
		t.Errorf("relevant record not selected:\n%s", out)
	}
	if strings.Contains(out, "has two cats at home") {
		t.Errorf("irrelevant record selected over relevant one:\n%s", out)
	}
}

func TestBuildContextReinforcesSelectedSemantic(t *testing.T) {
	eng, db := testEngine(t, config.DefaultPolicy())
	ctx := context.Background()

	seeded := seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "veg",
		Value: "prefers vegetarian food", Tier: store.TierSemantic,
		Confidence: 0.9, Strength: 0.5, Importance: 0.5}, 0)
	time.Sleep(5 * time.Millisecond)

	if _, err := eng.BuildContext(ctx, "u1", "dinner plans"); err != nil {
		t.Fatalf("BuildContext: %v", err)
	}

	got, err := db.Get(ctx, "u1", "semantic", "veg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Strength <= 0.5 {
		t.Errorf("strength = %v, want > 0.5 after retrieval", got.Strength)
	}
	if got.LastAccessAt == 0 {
		t.Error("last_access_at not set by retrieval")
	}
	if got.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", got.AccessCount)
	}
	// Retrieval is not an observation: TTL and eviction ordering inputs
	// must not move.
	if got.LastSeenAt != seeded.LastSeenAt || got.UpdatedAt != seeded.UpdatedAt {
		t.Errorf("retrieval moved observation timestamps: seen %d->%d updated %d->%d",
			seeded.LastSeenAt, got.LastSeenAt, seeded.UpdatedAt, got.UpdatedAt)
	}
}

func TestBuildContextWorkingMostRecentOnly(t *testing.T) {
	eng, db := testEngine(t, config.DefaultPolicy())
	ctx := context.Background()

	seedSpaced(t, db,
		&store.Record{OwnerID: "u1", Category: "working", Key: "old",
			Value: "was reading earlier", Tier: store.TierWorking, Strength: 0.5},
		&store.Record{OwnerID: "u1", Category: "working", Key: "new",
			Value: "making tea right now", Tier: store.TierWorking, Strength: 0.5},
	)

	out, err := eng.BuildContext(ctx, "u1", "")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if !strings.Contains(out, "making tea right now") {
		t.Errorf("most recent working record missing:\n%s", out)
	}
	if strings.Contains(out, "was reading earlier") {
		t.Errorf("older working record leaked into context:\n%s", out)
	}

	// Working retrieval leaves bookkeeping alone.
	got, _ := db.Get(ctx, "u1", "working", "new")
	if got.AccessCount != 0 || got.LastAccessAt != 0 {
		t.Errorf("working record reinforced by retrieval: %+v", got)
	}
}

func TestBuildContextPinnedLimit(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.PinnedLimit = 2
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	values := map[string]float64{
		"a": 0.9,
		"b": 0.8,
		"c": 0.3,
	}
	for key, imp := range values {
		seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "user", Key: key,
			Value: "pinned note " + key, Tier: store.TierPinned, Pinned: true,
			Confidence: 1, Strength: 1, Importance: imp}, 0)
	}

	out, err := eng.BuildContext(ctx, "u1", "")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if !strings.Contains(out, "pinned note a") || !strings.Contains(out, "pinned note b") {
		t.Errorf("high-importance pinned notes missing:\n%s", out)
	}
	if strings.Contains(out, "pinned note c") {
		t.Errorf("pinned budget exceeded:\n%s", out)
	}
}

func TestBuildContextActivationAffectsRanking(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.SemanticLimit = 1
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "weak",
		Value: "mentioned a gardening project", Tier: store.TierSemantic,
		Confidence: 0.9, Strength: 0.1, Importance: 0.5}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "strong",
		Value: "started a pottery class", Tier: store.TierSemantic,
		Confidence: 0.9, Strength: 0.9, Importance: 0.5}, 0)

	// Equal relevance and importance: the activation term decides.
	out, err := eng.BuildContext(ctx, "u1", "")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if !strings.Contains(out, "started a pottery class") {
		t.Errorf("strong record not selected:\n%s", out)
	}
	if strings.Contains(out, "mentioned a gardening project") {
		t.Errorf("weak record outranked a strong one:\n%s", out)
	}
}

func TestBuildContextEmpty(t *testing.T) {
	eng, _ := testEngine(t, config.DefaultPolicy())

	out, err := eng.BuildContext(context.Background(), "nobody", "anything")
	if err != nil {
		t.Fatalf("BuildContext: %v", err)
	}
	if out != "" {
		t.Errorf("output = %q, want empty", out)
	}
}
