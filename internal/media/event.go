// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package media

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ChangeType identifies the kind of object-storage change an event reports.
type ChangeType string

const (
	// ChangeCreated indicates a new or overwritten object.
	ChangeCreated ChangeType = "created"
	// ChangeRemoved indicates the object was deleted from storage.
	ChangeRemoved ChangeType = "removed"
)

// Valid reports whether c is a known change type.
func (c ChangeType) Valid() bool {
	return c == ChangeCreated || c == ChangeRemoved
}

// StorageEvent is the canonical object-storage change notification consumed
// by the pipeline. EventID is delivery-unique and stable across redelivery of
// the same logical event; it keys the idempotency ledger.
type StorageEvent struct {
	EventID     string     `json:"event_id"`
	MediaID     string     `json:"media_id"`
	ChangeType  ChangeType `json:"change_type"`
	StorageKey  string     `json:"storage_key"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// NewStorageEvent creates an event with a unique ID and current timestamp.
func NewStorageEvent(mediaID string, change ChangeType) *StorageEvent {
	return &StorageEvent{
		EventID:    uuid.New().String(),
		MediaID:    mediaID,
		ChangeType: change,
		Timestamp:  time.Now().UTC(),
	}
}

// Validate checks required fields and returns a ValidationError naming the
// first field that fails.
func (e *StorageEvent) Validate() error {
	if e.EventID == "" {
		return &ValidationError{Field: "event_id", Message: "required"}
	}
	if e.MediaID == "" {
		return &ValidationError{Field: "media_id", Message: "required"}
	}
	if !e.ChangeType.Valid() {
		return &ValidationError{Field: "change_type", Message: "must be created or removed"}
	}
	if e.ChangeType == ChangeCreated && e.StorageKey == "" {
		return &ValidationError{Field: "storage_key", Message: "required for created events"}
	}
	return nil
}

// Topic returns the NATS subject for this event.
// Format: media.events.<change_type>
func (e *StorageEvent) Topic() string {
	return "media.events." + string(e.ChangeType)
}

// ParseStorageEvent decodes and validates a storage event payload.
func ParseStorageEvent(data []byte) (*StorageEvent, error) {
	var ev StorageEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Marshal encodes the event after validating it.
func (e *StorageEvent) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// ValidationError represents a field validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
