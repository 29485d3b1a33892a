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

	"github.com/conveyor-media/conveyor/internal/metrics"
)

// Outcome records why an event was marked processed.
type Outcome string

const (
	// OutcomeApplied means the event's side effects were durably applied.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means the event resolved to a no-op (duplicate,
	// illegal transition, malformed payload).
	OutcomeSkipped Outcome = "skipped"
)

// LedgerEntry is the de-duplication record for one processed event.
// Entries are written once and never mutated.
type LedgerEntry struct {
	EventID     string    `json:"event_id"`
	Outcome     Outcome   `json:"outcome"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Ledger is the durable idempotency ledger keyed by event ID.
//
// Presence of an entry means the event's side effects are already applied
// and must not be re-applied. Entries expire after the retention window;
// expiry only loses duplicate-suppression efficiency, because record
// transitions converge to no-ops on replay anyway.
type Ledger struct {
	db        *badger.DB
	retention time.Duration
}

// NewLedger creates a ledger on the shared database.
// retention <= 0 disables expiry.
func NewLedger(db *DB, retention time.Duration) *Ledger {
	return &Ledger{db: db.db, retention: retention}
}

// Seen reports whether the event was already processed, and with what outcome.
func (l *Ledger) Seen(ctx context.Context, eventID string) (bool, Outcome, error) {
	if err := ctx.Err(); err != nil {
		return false, "", err
	}

	var entry LedgerEntry
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(ledgerKey(eventID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("read ledger entry: %w", err)
	}
	return true, entry.Outcome, nil
}

// MarkProcessed records the event as processed. The write is first-writer-
// wins: marking an already-marked event is a successful no-op, so concurrent
// replicas racing on the same delivery cannot fail each other here.
func (l *Ledger) MarkProcessed(ctx context.Context, eventID string, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if eventID == "" {
		return fmt.Errorf("event id required")
	}

	entry := LedgerEntry{
		EventID:     eventID,
		Outcome:     outcome,
		ProcessedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	err = l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(ledgerKey(eventID))
		if err == nil {
			return nil // already marked
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("read ledger entry: %w", err)
		}
		e := badger.NewEntry(ledgerKey(eventID), data)
		if l.retention > 0 {
			e = e.WithTTL(l.retention)
		}
		return txn.SetEntry(e)
	})
	if errors.Is(err, badger.ErrConflict) {
		// Another replica marked the same event first. The entry exists,
		// which is all the caller needs.
		return nil
	}
	if err != nil {
		return err
	}
	metrics.RecordLedgerWrite()
	return nil
}

func ledgerKey(eventID string) []byte {
	return []byte(ledgerKeyPrefix + eventID)
}
