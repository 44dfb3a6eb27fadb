package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// nowMs is the write clock. Tests may override it to backdate records.
var nowMs = func() int64 { return time.Now().UnixMilli() }

const recordColumns = `id, owner_id, category, key, value, tier, confidence, strength,
	importance, source_type, pinned, access_count, last_access_at, last_seen_at,
	expires_at, created_at, updated_at`

// Get returns the record for (owner, category, key), or nil if absent.
func (db *DB) Get(ctx context.Context, ownerID, category, key string) (*Record, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM memories WHERE owner_id = ? AND category = ? AND key = ?
	`, ownerID, category, key)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// Upsert inserts or merges a record inside a transaction. The two-step
// read-modify-write keeps the field-preservation contract explicit instead of
// hiding it in a single conflict clause. The stored state is written back
// into rec.
func (db *DB) Upsert(ctx context.Context, rec *Record, eta float64) error {
	now := nowMs()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM memories WHERE owner_id = ? AND category = ? AND key = ?
	`, rec.OwnerID, rec.Category, rec.Key)

	existing, err := scanRecord(row)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("upsert read: %w", err)
	}

	var final *Record
	if existing == nil {
		final = initRecord(rec, eta, now)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO memories (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, final.ID, final.OwnerID, final.Category, final.Key, final.Value,
			string(final.Tier), final.Confidence, final.Strength, final.Importance,
			string(final.SourceType), boolInt(final.Pinned), final.AccessCount,
			final.LastAccessAt, final.LastSeenAt, final.ExpiresAt,
			final.CreatedAt, final.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
	} else {
		final = mergeRecord(existing, rec, eta, now)
		_, err = tx.ExecContext(ctx, `
			UPDATE memories SET value = ?, confidence = ?, strength = ?, importance = ?,
				source_type = ?, pinned = ?, access_count = ?, last_access_at = ?,
				last_seen_at = ?, expires_at = ?, updated_at = ?
			WHERE id = ?
		`, final.Value, final.Confidence, final.Strength, final.Importance,
			string(final.SourceType), boolInt(final.Pinned), final.AccessCount,
			final.LastAccessAt, final.LastSeenAt, final.ExpiresAt, final.UpdatedAt,
			final.ID)
		if err != nil {
			return fmt.Errorf("update record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	*rec = *final
	return nil
}

// Touch records an access for (owner, category, key) without updating the
// observation timestamps. Absent records are a no-op.
func (db *DB) Touch(ctx context.Context, ownerID, category, key string, eta float64) error {
	now := nowMs()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin touch: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM memories WHERE owner_id = ? AND category = ? AND key = ?
	`, ownerID, category, key)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("touch read: %w", err)
	}

	touchRecord(rec, eta, now)
	if _, err := tx.ExecContext(ctx, `
		UPDATE memories SET strength = ?, access_count = ?, last_access_at = ?
		WHERE id = ?
	`, rec.Strength, rec.AccessCount, rec.LastAccessAt, rec.ID); err != nil {
		return fmt.Errorf("touch record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit touch: %w", err)
	}
	return nil
}

// ListByOwner returns all records for an owner, most recently updated first.
func (db *DB) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM memories WHERE owner_id = ?
		ORDER BY updated_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list by owner: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Delete removes one record by ID, scoped to the owner.
func (db *DB) Delete(ctx context.Context, ownerID, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM memories WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete record %s: %w", id, err)
	}
	return nil
}

// DeleteByOwner wipes an owner's entire record set, pinned included.
func (db *DB) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM memories WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("delete by owner: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var r Record
	var tier, source string
	var pinned int
	err := row.Scan(&r.ID, &r.OwnerID, &r.Category, &r.Key, &r.Value, &tier,
		&r.Confidence, &r.Strength, &r.Importance, &source, &pinned,
		&r.AccessCount, &r.LastAccessAt, &r.LastSeenAt, &r.ExpiresAt,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.Tier = Tier(tier)
	r.SourceType = SourceType(source)
	r.Pinned = pinned != 0
	return &r, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
