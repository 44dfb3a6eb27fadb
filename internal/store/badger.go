package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "mem:"

// Badger is the Badger-backed Store implementation. Records are stored as
// JSON under mem:<owner>:<category>:<key> with escaped segments, so owner
// scans are prefix scans.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger store at the given directory.
func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

// OpenBadgerMemory opens an in-memory Badger store for testing.
func OpenBadgerMemory() (*Badger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger memory: %w", err)
	}
	return &Badger{db: db}, nil
}

// keySegment escapes one key segment. Owner IDs are opaque strings, so a ':'
// inside one must not let its prefix match another owner's.
func keySegment(s string) string {
	return url.QueryEscape(s)
}

func badgerKey(ownerID, category, key string) []byte {
	return []byte(badgerKeyPrefix + keySegment(ownerID) + ":" + keySegment(category) + ":" + keySegment(key))
}

func ownerPrefix(ownerID string) []byte {
	return []byte(badgerKeyPrefix + keySegment(ownerID) + ":")
}

// Get returns the record for (owner, category, key), or nil if absent.
func (b *Badger) Get(ctx context.Context, ownerID, category, key string) (*Record, error) {
	var rec *Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(ownerID, category, key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var r Record
			if err := json.Unmarshal(val, &r); err != nil {
				return err
			}
			rec = &r
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("badger get: %w", err)
	}
	return rec, nil
}

// Upsert inserts or merges a record inside a Badger transaction. The stored
// state is written back into rec.
func (b *Badger) Upsert(ctx context.Context, rec *Record, eta float64) error {
	now := nowMs()
	k := badgerKey(rec.OwnerID, rec.Category, rec.Key)

	var final *Record
	err := b.db.Update(func(txn *badger.Txn) error {
		var existing *Record
		item, err := txn.Get(k)
		if err != nil && err != badger.ErrKeyNotFound {
			return err
		}
		if err == nil {
			if err := item.Value(func(val []byte) error {
				var r Record
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				existing = &r
				return nil
			}); err != nil {
				return err
			}
		}

		if existing == nil {
			final = initRecord(rec, eta, now)
		} else {
			final = mergeRecord(existing, rec, eta, now)
		}

		data, err := json.Marshal(final)
		if err != nil {
			return err
		}
		return txn.Set(k, data)
	})
	if err != nil {
		return fmt.Errorf("badger upsert: %w", err)
	}
	*rec = *final
	return nil
}

// Touch records an access without updating the observation timestamps.
// Absent records are a no-op.
func (b *Badger) Touch(ctx context.Context, ownerID, category, key string, eta float64) error {
	now := nowMs()
	k := badgerKey(ownerID, category, key)

	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var r Record
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		}); err != nil {
			return err
		}

		touchRecord(&r, eta, now)
		data, err := json.Marshal(&r)
		if err != nil {
			return err
		}
		return txn.Set(k, data)
	})
	if err != nil {
		return fmt.Errorf("badger touch: %w", err)
	}
	return nil
}

// ListByOwner returns all records for an owner.
func (b *Badger) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	var records []Record
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ownerPrefix(ownerID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var r Record
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				records = append(records, r)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("badger list: %w", err)
	}
	return records, nil
}

// Delete removes one record by ID, scoped to the owner. Badger keys are
// derived from (owner, category, key), so the owner's records are scanned to
// find the matching ID.
func (b *Badger) Delete(ctx context.Context, ownerID, id string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ownerPrefix(ownerID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var match bool
			err := item.Value(func(val []byte) error {
				var r Record
				if err := json.Unmarshal(val, &r); err != nil {
					return err
				}
				match = r.ID == id
				return nil
			})
			if err != nil {
				return err
			}
			if match {
				return txn.Delete(item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger delete %s: %w", id, err)
	}
	return nil
}

// DeleteByOwner wipes an owner's entire record set, pinned included.
func (b *Badger) DeleteByOwner(ctx context.Context, ownerID string) (int, error) {
	deleted := 0
	err := b.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = ownerPrefix(ownerID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger delete by owner: %w", err)
	}
	return deleted, nil
}

// Ping reports whether the store is usable.
func (b *Badger) Ping(ctx context.Context) error {
	if b.db.IsClosed() {
		return fmt.Errorf("badger: closed")
	}
	return nil
}

// Close closes the underlying Badger database.
func (b *Badger) Close() error {
	return b.db.Close()
}
