// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/conveyor-media/conveyor/internal/media"
	"github.com/conveyor-media/conveyor/internal/metrics"
)

// RecordStore persists MediaRecords with optimistic concurrency.
//
// Every mutation goes through PutIfVersion: the caller supplies the version
// it read, and the write is rejected with ErrVersionConflict when the stored
// version differs. Badger's serializable transactions additionally detect
// racing commits on the same key; those surface as ErrVersionConflict too,
// so callers have a single conflict signal to retry on.
type RecordStore struct {
	db *badger.DB
}

// NewRecordStore creates a record store on the shared database.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db.db}
}

// Get retrieves a media record by ID.
// Returns ErrRecordNotFound when no record exists.
func (s *RecordStore) Get(ctx context.Context, mediaID string) (*media.MediaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec media.MediaRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(mediaID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRecordNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// PutIfVersion writes the record only if the stored version still equals
// expectedVersion. expectedVersion 0 means create-only: the write fails with
// ErrVersionConflict when a record already exists.
//
// On success the stored record carries Version expectedVersion+1 and a fresh
// UpdatedAt; the caller's record is updated in place to match.
func (s *RecordStore) PutIfVersion(ctx context.Context, rec *media.MediaRecord, expectedVersion uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.MediaID == "" {
		return fmt.Errorf("record with media_id required")
	}

	next := *rec
	next.Version = expectedVersion + 1
	next.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(rec.MediaID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			if expectedVersion != 0 {
				return ErrVersionConflict
			}
		case err != nil:
			return fmt.Errorf("read current record: %w", err)
		default:
			var current media.MediaRecord
			if verr := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); verr != nil {
				return fmt.Errorf("decode current record: %w", verr)
			}
			if current.Version != expectedVersion {
				return ErrVersionConflict
			}
		}
		return txn.Set(recordKey(rec.MediaID), data)
	})

	if errors.Is(err, badger.ErrConflict) {
		// A concurrent transaction committed first; same remedy as a stale
		// version, so report it the same way.
		err = ErrVersionConflict
	}
	if errors.Is(err, ErrVersionConflict) {
		metrics.RecordStoreConflict()
	}
	if err != nil {
		return err
	}

	rec.Version = next.Version
	rec.UpdatedAt = next.UpdatedAt
	return nil
}

func recordKey(mediaID string) []byte {
	return []byte(recordKeyPrefix + mediaID)
}
