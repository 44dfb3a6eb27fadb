// Package store defines the memory record model, the persistence interface
// the engine is built against, and the SQLite and Badger adapters.
package store

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lethe-mem/lethe/internal/decay"
)

// Tier is the coarse lifecycle class of a record.
type Tier string

const (
	// TierPinned records are permanent until explicitly deleted.
	TierPinned Tier = "pinned"
	// TierSemantic records are long-term and decay slowly.
	TierSemantic Tier = "semantic"
	// TierWorking records are short-term scratchpad entries.
	TierWorking Tier = "working"
)

// SourceType records where an observation came from.
type SourceType string

const (
	SourceUser     SourceType = "user"
	SourceInferred SourceType = "inferred"
)

// Record is the sole persisted entity: one fact about one owner.
// At most one record exists per (owner_id, category, key).
type Record struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	Category     string     `json:"category"`
	Key          string     `json:"key"`
	Value        string     `json:"value"`
	Tier         Tier       `json:"tier"`
	Confidence   float64    `json:"confidence"`
	Strength     float64    `json:"strength"`
	Importance   float64    `json:"importance"`
	SourceType   SourceType `json:"source_type"`
	Pinned       bool       `json:"pinned"`
	AccessCount  int        `json:"access_count"`
	LastAccessAt int64      `json:"last_access_at"` // unix ms, 0 = never
	LastSeenAt   int64      `json:"last_seen_at"`   // unix ms
	ExpiresAt    int64      `json:"expires_at"`     // unix ms, 0 = category TTL policy
	CreatedAt    int64      `json:"created_at"`     // unix ms
	UpdatedAt    int64      `json:"updated_at"`     // unix ms
}

// Exempt reports whether retention passes must skip this record.
func (r *Record) Exempt() bool {
	return r.Pinned || r.Tier == TierPinned
}

// RefTime returns the reference timestamp for activation: last access when
// set, otherwise last seen.
func (r *Record) RefTime() int64 {
	if r.LastAccessAt > 0 {
		return r.LastAccessAt
	}
	return r.LastSeenAt
}

// Store is the persistence interface the engine depends on. Implementations
// must provide last-write-wins upsert-with-merge semantics per
// (owner_id, category, key): Get returns nil (no error) when absent.
type Store interface {
	Get(ctx context.Context, ownerID, category, key string) (*Record, error)

	// Upsert inserts or merges a record. On conflict the incoming
	// value/confidence/source_type replace the stored ones while
	// tier/strength/importance and access bookkeeping are preserved. A
	// positive eta additionally reinforces strength and records an access.
	Upsert(ctx context.Context, rec *Record, eta float64) error

	// Touch records an access without registering a new observation: the
	// access counter increments and a positive eta reinforces strength and
	// stamps last_access_at, but last_seen_at and updated_at stay put.
	// Touching an absent record is a no-op.
	Touch(ctx context.Context, ownerID, category, key string, eta float64) error

	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)
	Delete(ctx context.Context, ownerID, id string) error

	// DeleteByOwner removes every record for an owner, pinned included,
	// and returns the number deleted.
	DeleteByOwner(ctx context.Context, ownerID string) (int, error)

	Ping(ctx context.Context) error
	Close() error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a new sortable record ID.
func NewID(now int64) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(uint64(now), entropy).String()
}

// mergeRecord applies the conflicting-write contract to an existing record:
// the newest value, confidence and source type win; tier, strength,
// importance, the pinned flag and bookkeeping survive. The access counter
// also tracks repeat observations so consolidation can see verbatim
// repetitions that collapse into a single row.
func mergeRecord(existing, incoming *Record, eta float64, now int64) *Record {
	merged := *existing
	merged.Value = incoming.Value
	merged.Confidence = decay.Clamp01(incoming.Confidence)
	merged.SourceType = incoming.SourceType
	merged.Pinned = existing.Pinned || incoming.Pinned
	if incoming.ExpiresAt > 0 {
		merged.ExpiresAt = incoming.ExpiresAt
	}
	merged.LastSeenAt = now
	merged.UpdatedAt = now
	merged.AccessCount++
	if eta > 0 {
		merged.Strength = decay.Reinforce(merged.Strength, eta)
		merged.LastAccessAt = now
	}
	return &merged
}

// touchRecord applies an access to an existing record. Unlike mergeRecord it
// leaves the observation timestamps alone, so a retrieval never resets TTL or
// eviction ordering.
func touchRecord(r *Record, eta float64, now int64) {
	r.AccessCount++
	if eta > 0 {
		r.Strength = decay.Reinforce(r.Strength, eta)
		r.LastAccessAt = now
	}
}

// initRecord prepares a brand-new record for insert.
func initRecord(rec *Record, eta float64, now int64) *Record {
	fresh := *rec
	fresh.ID = NewID(now)
	fresh.Confidence = decay.Clamp01(fresh.Confidence)
	fresh.Strength = decay.Clamp01(fresh.Strength)
	fresh.Importance = decay.Clamp01(fresh.Importance)
	if fresh.SourceType == "" {
		fresh.SourceType = SourceInferred
	}
	fresh.CreatedAt = now
	fresh.UpdatedAt = now
	fresh.LastSeenAt = now
	if eta > 0 {
		fresh.Strength = decay.Reinforce(fresh.Strength, eta)
		fresh.LastAccessAt = now
	}
	return &fresh
}
