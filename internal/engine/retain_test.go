package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lethe-mem/lethe/internal/config"
	"github.com/lethe-mem/lethe/internal/store"
)

// seedSpaced seeds records with distinct millisecond timestamps so
// oldest-first eviction order is deterministic.
func seedSpaced(t *testing.T, db *store.DB, recs ...*store.Record) {
	t.Helper()
	for i, r := range recs {
		if i > 0 {
			time.Sleep(5 * time.Millisecond)
		}
		seedRecord(t, db, r, 0)
	}
}

func TestRetainTTLExpiry(t *testing.T) {
	eng, db := testEngine(t, config.DefaultPolicy())
	ctx := context.Background()

	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "working", Key: "w",
		Value: "mentioned a headache today", Tier: store.TierWorking,
		Strength: 0.5, Importance: 0.25}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "fact", Key: "f",
		Value: "works as a nurse", Tier: store.TierSemantic,
		Strength: 0.9, Importance: 0.9}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "event", Key: "e",
		Value: "attended a concert", Tier: store.TierSemantic,
		Strength: 0.9, Importance: 0.9}, 0)

	// 100 hours: past the working TTL, inside the event TTL.
	advanceClock(eng, 100*time.Hour)

	report, err := eng.Retain(ctx, "u1")
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if report.Expired != 1 {
		t.Fatalf("expired = %d, want 1", report.Expired)
	}

	records, _ := db.ListByOwner(ctx, "u1")
	if findRecord(records, "working", "w") != nil {
		t.Error("working record survived its TTL")
	}
	if findRecord(records, "fact", "f") == nil {
		t.Error("fact record expired despite having no TTL")
	}
	if findRecord(records, "event", "e") == nil {
		t.Error("event record expired before its TTL")
	}
}

func TestRetainExplicitExpiryOverridesPolicy(t *testing.T) {
	eng, db := testEngine(t, config.DefaultPolicy())
	ctx := context.Background()
	now := time.Now().UnixMilli()

	// A fact with an explicit deadline expires even though the category
	// never does; a working record with a far deadline outlives its
	// category TTL.
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "fact", Key: "f",
		Value: "staying at the lake house", Tier: store.TierSemantic,
		Strength: 0.9, Importance: 0.9,
		ExpiresAt: now - time.Hour.Milliseconds()}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "working", Key: "w",
		Value: "planning a surprise party", Tier: store.TierWorking,
		Strength: 0.5, Importance: 0.25,
		ExpiresAt: now + (365 * 24 * time.Hour).Milliseconds()}, 0)

	advanceClock(eng, 100*time.Hour)

	report, err := eng.Retain(ctx, "u1")
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if report.Expired != 1 {
		t.Fatalf("expired = %d, want 1", report.Expired)
	}

	records, _ := db.ListByOwner(ctx, "u1")
	if findRecord(records, "fact", "f") != nil {
		t.Error("explicit expires_at ignored on fact record")
	}
	if findRecord(records, "working", "w") == nil {
		t.Error("explicit expires_at did not override the working TTL")
	}
}

func TestRetainCategoryCapOldestFirst(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.CategoryCaps = map[string]int{"working": 2}
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	seedSpaced(t, db,
		&store.Record{OwnerID: "u1", Category: "working", Key: "a",
			Value: "first thing mentioned", Tier: store.TierWorking, Strength: 0.5},
		&store.Record{OwnerID: "u1", Category: "working", Key: "b",
			Value: "second thing mentioned", Tier: store.TierWorking, Strength: 0.5},
		&store.Record{OwnerID: "u1", Category: "working", Key: "c",
			Value: "third thing mentioned", Tier: store.TierWorking, Strength: 0.5},
		&store.Record{OwnerID: "u1", Category: "working", Key: "d",
			Value: "fourth thing mentioned", Tier: store.TierWorking, Strength: 0.5},
	)

	report, err := eng.Retain(ctx, "u1")
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if report.CategoryEvicted != 2 {
		t.Fatalf("category_evicted = %d, want 2", report.CategoryEvicted)
	}

	records, _ := db.ListByOwner(ctx, "u1")
	for _, key := range []string{"a", "b"} {
		if findRecord(records, "working", key) != nil {
			t.Errorf("oldest record %q survived the category cap", key)
		}
	}
	for _, key := range []string{"c", "d"} {
		if findRecord(records, "working", key) == nil {
			t.Errorf("recent record %q evicted by the category cap", key)
		}
	}
}

func TestRetainGlobalCap(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.TotalCap = 3
	policy.CategoryCaps = nil
	policy.CategoryTTL = nil
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	keys := []string{"a", "b", "c", "d", "e"}
	for i, key := range keys {
		if i > 0 {
			time.Sleep(5 * time.Millisecond)
		}
		seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "working", Key: key,
			Value: "note " + key, Tier: store.TierWorking, Strength: 0.5}, 0)
	}

	report, err := eng.Retain(ctx, "u1")
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if report.GlobalEvicted != 2 {
		t.Fatalf("global_evicted = %d, want 2", report.GlobalEvicted)
	}

	records, _ := db.ListByOwner(ctx, "u1")
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	if findRecord(records, "working", "a") != nil || findRecord(records, "working", "b") != nil {
		t.Error("oldest records survived the global cap")
	}
}

func TestRetainPinnedExemptUnderPressure(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.TotalCap = 1
	policy.CategoryCaps = map[string]int{"working": 1}
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "user", Key: "bday",
		Value: "birthday is May 5", Tier: store.TierPinned, Pinned: true,
		Strength: 1, Importance: 0.95}, 0)
	seedSpaced(t, db,
		&store.Record{OwnerID: "u1", Category: "working", Key: "a",
			Value: "grabbing lunch soon", Tier: store.TierWorking, Strength: 0.5},
		&store.Record{OwnerID: "u1", Category: "working", Key: "b",
			Value: "weather looks stormy", Tier: store.TierWorking, Strength: 0.5},
	)

	// Well past every TTL, with caps squeezed to the minimum.
	advanceClock(eng, 200*24*time.Hour)

	if _, err := eng.Retain(ctx, "u1"); err != nil {
		t.Fatalf("Retain: %v", err)
	}

	records, _ := db.ListByOwner(ctx, "u1")
	if findRecord(records, "user", "bday") == nil {
		t.Fatal("pinned record evicted by retention")
	}
	for _, r := range records {
		if !r.Exempt() {
			t.Errorf("non-exempt record survived total pressure: %s/%s", r.Category, r.Key)
		}
	}
}

func TestRetainSemanticPruning(t *testing.T) {
	policy := config.DefaultPolicy()
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "low",
		Value: "once mentioned liking trivia", Tier: store.TierSemantic,
		Strength: 0.5, Importance: 0.3}, 0)
	seedRecord(t, db, &store.Record{OwnerID: "u1", Category: "semantic", Key: "high",
		Value: "is allergic to peanuts", Tier: store.TierSemantic,
		Strength: 0.5, Importance: 0.8}, 0)

	// Two semantic time constants: activation ~0.07, below the prune line.
	advanceClock(eng, 2*policy.TauSemantic)

	report, err := eng.Retain(ctx, "u1")
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if report.Pruned != 1 {
		t.Fatalf("pruned = %d, want 1", report.Pruned)
	}

	records, _ := db.ListByOwner(ctx, "u1")
	if findRecord(records, "semantic", "low") != nil {
		t.Error("low-importance decayed record not pruned")
	}
	if findRecord(records, "semantic", "high") == nil {
		t.Error("high-importance record pruned despite decay")
	}
}

func TestRetainWorkingTrim(t *testing.T) {
	policy := config.DefaultPolicy()
	policy.WorkingKeep = 2
	eng, db := testEngine(t, policy)
	ctx := context.Background()

	seedSpaced(t, db,
		&store.Record{OwnerID: "u1", Category: "working", Key: "a",
			Value: "oldest scratch note", Tier: store.TierWorking, Strength: 0.5},
		&store.Record{OwnerID: "u1", Category: "working", Key: "b",
			Value: "middle scratch note", Tier: store.TierWorking, Strength: 0.5},
		&store.Record{OwnerID: "u1", Category: "working", Key: "c",
			Value: "newest scratch note", Tier: store.TierWorking, Strength: 0.5},
	)

	report, err := eng.Retain(ctx, "u1")
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if report.WorkingTrimmed != 1 {
		t.Fatalf("working_trimmed = %d, want 1", report.WorkingTrimmed)
	}

	records, _ := db.ListByOwner(ctx, "u1")
	if findRecord(records, "working", "a") != nil {
		t.Error("oldest working record survived the trim")
	}
	if findRecord(records, "working", "b") == nil || findRecord(records, "working", "c") == nil {
		t.Error("recent working records trimmed")
	}
}

func TestRetainEmptyOwner(t *testing.T) {
	eng, _ := testEngine(t, config.DefaultPolicy())

	report, err := eng.Retain(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Retain: %v", err)
	}
	if report.Total() != 0 {
		t.Errorf("report.Total() = %d, want 0", report.Total())
	}

	if _, err := eng.Retain(context.Background(), ""); !errors.Is(err, ErrOwnerRequired) {
		t.Errorf("err = %v, want ErrOwnerRequired", err)
	}
}
