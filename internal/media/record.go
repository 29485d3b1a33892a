// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package media

import (
	"time"
)

// State is the lifecycle state of a media record.
type State string

const (
	// StatePending is the initial state on first sight of a storage key.
	StatePending State = "PENDING"
	// StateProcessing indicates the processing step is (or was) in flight.
	StateProcessing State = "PROCESSING"
	// StateCompleted is the terminal success state.
	StateCompleted State = "COMPLETED"
	// StateFailed is the terminal business-failure state. External retry may
	// move a FAILED record back to PROCESSING.
	StateFailed State = "FAILED"
	// StateRemoved is the logical tombstone set when the underlying object is
	// deleted. Records are never physically removed by this subsystem.
	StateRemoved State = "REMOVED"
)

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateProcessing, StateCompleted, StateFailed, StateRemoved:
		return true
	}
	return false
}

// Terminal reports whether the state accepts no further processing.
// FAILED is terminal for the pipeline but may be retried externally.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateRemoved
}

// MediaRecord is the durable lifecycle record for a single media object.
//
// Version implements optimistic concurrency: it strictly increases on every
// persisted mutation, and writers must supply the version they read. The
// store rejects writes carrying a stale version.
type MediaRecord struct {
	MediaID     string            `json:"media_id"`
	State       State             `json:"state"`
	StorageKey  string            `json:"storage_key"`
	SizeBytes   int64             `json:"size_bytes"`
	ContentType string            `json:"content_type"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	LastError   string            `json:"last_error,omitempty"`
	Version     uint64            `json:"version"`
}

// Clone returns a deep copy of the record. The orchestrator clones before
// mutating so a failed conditional write never leaves a half-updated record
// in the caller's hands.
func (r *MediaRecord) Clone() *MediaRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

// NewRecord creates a PENDING record from a storage event's attributes.
func NewRecord(ev *StorageEvent, now time.Time) *MediaRecord {
	return &MediaRecord{
		MediaID:     ev.MediaID,
		State:       StatePending,
		StorageKey:  ev.StorageKey,
		SizeBytes:   ev.SizeBytes,
		ContentType: ev.ContentType,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}
}
