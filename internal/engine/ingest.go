package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/lethe-mem/lethe/internal/store"
)

// Categories assigned by ingestion.
const (
	categoryUser     = "user"
	categoryWorking  = "working"
	categorySemantic = "semantic"
)

// pinPhrases mark an observation as explicitly pinned. The match is a
// conservative substring check; false positives permanently retain a fact,
// so the list stays short.
var pinPhrases = []string{
	"remember this",
	"remember that",
	"don't forget",
	"do not forget",
	"never forget",
}

// IngestOptions carries per-observation metadata.
type IngestOptions struct {
	// Pin forces the observation into the pinned tier even without an
	// explicit pin phrase in the text.
	Pin bool
	// Source marks who asserted the observation. Defaults to inferred.
	Source store.SourceType
}

// Ingest classifies one text observation and upserts the resulting record,
// then opportunistically triggers maintenance for the owner. Maintenance
// failures never fail ingestion.
func (e *Engine) Ingest(ctx context.Context, ownerID, text string, opts IngestOptions) error {
	if ownerID == "" {
		return ErrOwnerRequired
	}
	value := normalizeText(text, e.policy.ValueMaxLen)
	if value == "" {
		return ErrTextRequired
	}
	// Runes, not bytes: truncation above is rune-based too.
	if utf8.RuneCountInString(value) < e.policy.MinIngestLen {
		return ErrTextTooShort
	}

	source := opts.Source
	if source == "" {
		source = store.SourceInferred
	}

	if opts.Pin || hasPinPhrase(value) {
		rec := &store.Record{
			OwnerID:    ownerID,
			Category:   categoryUser,
			Key:        hashKey(value),
			Value:      value,
			Tier:       store.TierPinned,
			Pinned:     true,
			Confidence: 1.0,
			Strength:   1.0,
			Importance: 0.95,
			SourceType: store.SourceUser,
		}
		if err := e.store.Upsert(ctx, rec, e.policy.EtaConfirmed); err != nil {
			return storeErr("upsert pinned", err)
		}
		e.metrics.RecordIngest(string(store.TierPinned))
		e.log.Debug("pinned memory", "owner", ownerID, "key", rec.Key)
		e.maybeMaintain(ctx, ownerID)
		return nil
	}

	rec := &store.Record{
		OwnerID:    ownerID,
		Category:   categoryWorking,
		Key:        hashKey(value),
		Value:      value,
		Tier:       store.TierWorking,
		Confidence: 0.5,
		Strength:   0.5,
		Importance: 0.25,
		SourceType: source,
	}
	// No reinforcement: a repeat observation touches last_seen_at and the
	// observation counter, nothing more.
	if err := e.store.Upsert(ctx, rec, 0); err != nil {
		return storeErr("upsert working", err)
	}
	e.metrics.RecordIngest(string(store.TierWorking))

	e.maybeMaintain(ctx, ownerID)
	return nil
}

// normalizeText trims, collapses whitespace, and truncates to maxLen runes.
func normalizeText(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if maxLen > 0 {
		runes := []rune(s)
		if len(runes) > maxLen {
			s = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return s
}

func hasPinPhrase(value string) bool {
	lower := strings.ToLower(value)
	for _, p := range pinPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// hashKey derives a stable record key from normalized text, so ingesting the
// identical observation twice touches the same record.
func hashKey(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(value)))
	return hex.EncodeToString(sum[:8])
}
