// Copyright 2024 go-dataspace
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-dataspace/dsp-engine/dsp/constants"
	"github.com/go-dataspace/dsp-engine/dsp/persistence"
	"github.com/go-dataspace/dsp-engine/logging"
	"github.com/google/uuid"
)

// record is what both negotiations and transfer processes look like to the store.
type record interface {
	GetID() uuid.UUID
	GetVersion() uint64
	GetRole() constants.DataspaceRole
	ToBytes() ([]byte, error)
}

// indexEntry points from a secondary key to a record ID. Unique entries may only be held by
// one live record at a time, non-unique entries carry the record ID in their key.
type indexEntry struct {
	key    []byte
	unique bool
}

// collection describes how one record type is laid out in badger.
//
// Records live under "<name>/<id>", indexes under "<name>-idx/<role>/<kind>/<value>".
type collection[T record] struct {
	name      string
	decode    func([]byte) (T, error)
	terminal  func(T) bool
	indexes   func(T) []indexEntry
	persisted func(T, uint64) T
}

func (c collection[T]) recordKey(id uuid.UUID) []byte {
	return []byte(c.name + "/" + id.String())
}

func (c collection[T]) indexKey(role constants.DataspaceRole, kind, value string) []byte {
	return indexKey(c.name, role, kind, value)
}

func indexKey(name string, role constants.DataspaceRole, kind, value string) []byte {
	return []byte(fmt.Sprintf("%s-idx/%s/%s/%s", name, role, kind, value))
}

func (c collection[T]) indexPrefix(role constants.DataspaceRole, kind, value string) []byte {
	return append(c.indexKey(role, kind, value), '/')
}

func (c collection[T]) load(txn *badger.Txn, id uuid.UUID) (T, error) {
	var zero T
	b, err := txnGet(txn, c.recordKey(id))
	if err != nil {
		return zero, err
	}
	return c.decode(b)
}

// byIndex resolves a unique index entry to its record.
func (c collection[T]) byIndex(db *badger.DB, key []byte) (T, error) {
	var rec T
	err := db.View(func(txn *badger.Txn) error {
		b, err := txnGet(txn, key)
		if err != nil {
			return err
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return fmt.Errorf("corrupt index %s: %w", key, err)
		}
		rec, err = c.load(txn, id)
		return err
	})
	return rec, err
}

// byIndexPrefix resolves all non-unique index entries under the prefix.
func (c collection[T]) byIndexPrefix(db *badger.DB, prefix []byte) ([]T, error) {
	var recs []T
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			b, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			id, err := uuid.FromBytes(b)
			if err != nil {
				return fmt.Errorf("corrupt index %s: %w", it.Item().Key(), err)
			}
			rec, err := c.load(txn, id)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	return recs, err
}

func (c collection[T]) all(db *badger.DB) ([]T, error) {
	values, err := getAllPrefixed(db, []byte(c.name+"/"))
	if err != nil {
		return nil, err
	}
	recs := make([]T, 0, len(values))
	for _, v := range values {
		rec, err := c.decode(v)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// put writes the record if the stored version matches, and returns the saved copy.
func (c collection[T]) put(ctx context.Context, sp *StorageProvider, rec T) (T, error) {
	var saved T
	logger := logging.Extract(ctx).With("collection", c.name, "id", rec.GetID().String())
	err := sp.update(func(txn *badger.Txn) error {
		key := c.recordKey(rec.GetID())
		stored, err := c.load(txn, rec.GetID())
		switch {
		case errors.Is(err, persistence.ErrNotFound):
			if rec.GetVersion() != 0 {
				return fmt.Errorf("%w: record %s disappeared", persistence.ErrVersionConflict, rec.GetID())
			}
		case err != nil:
			return err
		case stored.GetVersion() != rec.GetVersion():
			return fmt.Errorf("%w: stored version %d, saving version %d",
				persistence.ErrVersionConflict, stored.GetVersion(), rec.GetVersion())
		}

		for _, idx := range c.indexes(rec) {
			if err := c.claim(txn, idx, rec.GetID()); err != nil {
				return err
			}
		}

		saved = c.persisted(rec, rec.GetVersion()+1)
		b, err := saved.ToBytes()
		if err != nil {
			return err
		}
		return txn.Set(key, b)
	})
	if err != nil {
		logger.Debug("Could not save record", "err", err)
		var zero T
		return zero, err
	}
	logger.Debug("Record saved", "version", saved.GetVersion())
	return saved, nil
}

// claim points the index entry at id. A unique entry held by another live record is a
// duplicate, one held by a finished record is taken over.
func (c collection[T]) claim(txn *badger.Txn, idx indexEntry, id uuid.UUID) error {
	if idx.unique {
		b, err := txnGet(txn, idx.key)
		switch {
		case errors.Is(err, persistence.ErrNotFound):
		case err != nil:
			return err
		default:
			holder, err := uuid.FromBytes(b)
			if err != nil {
				return fmt.Errorf("corrupt index %s: %w", idx.key, err)
			}
			if holder == id {
				return nil
			}
			other, err := c.load(txn, holder)
			if err != nil && !errors.Is(err, persistence.ErrNotFound) {
				return err
			}
			if err == nil && !c.terminal(other) {
				return fmt.Errorf("%w: %s held by %s", persistence.ErrDuplicate, idx.key, holder)
			}
		}
	}
	return txn.Set(idx.key, id[:])
}

// filter returns the records the match function accepts.
func filter[T any](recs []T, match func(T) bool) []T {
	out := make([]T, 0, len(recs))
	for _, r := range recs {
		if match(r) {
			out = append(out, r)
		}
	}
	return out
}

// single returns the only element, or a not-found or ambiguity error.
func single[T any](recs []T) (T, error) {
	var zero T
	switch len(recs) {
	case 0:
		return zero, persistence.ErrNotFound
	case 1:
		return recs[0], nil
	default:
		return zero, fmt.Errorf("%w: %d records", persistence.ErrAmbiguous, len(recs))
	}
}

func roles(r *constants.DataspaceRole) []constants.DataspaceRole {
	if r != nil {
		return []constants.DataspaceRole{*r}
	}
	return []constants.DataspaceRole{constants.DataspaceConsumer, constants.DataspaceProvider}
}
