// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package notify fans out media state-change notifications. Delivery is
// at-least-once and fire-and-forget from the pipeline's perspective:
// a failed publish is logged and counted, never rolled back into the
// record store. Downstream consumers are assumed idempotent.
package notify

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/conveyor-media/conveyor/internal/media"
)

// EventType identifies the state change a notification reports.
type EventType string

const (
	// EventCompleted means processing finished successfully.
	EventCompleted EventType = "completed"
	// EventFailed means processing failed as a business outcome.
	EventFailed EventType = "failed"
	// EventRemoved means the media object was removed from storage.
	EventRemoved EventType = "removed"
)

// Envelope is the ephemeral notification message. It is owned by the
// pipeline only for the duration of the publish call and never persisted.
type Envelope struct {
	MediaID   string      `json:"media_id"`
	EventType EventType   `json:"event_type"`
	State     media.State `json:"state"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEnvelope builds an envelope for the record's current state.
func NewEnvelope(rec *media.MediaRecord, eventType EventType) *Envelope {
	return &Envelope{
		MediaID:   rec.MediaID,
		EventType: eventType,
		State:     rec.State,
		Timestamp: time.Now().UTC(),
	}
}

// Topic returns the NATS subject for the event type.
// Format: media.notifications.<event_type>
func (t EventType) Topic() string {
	return "media.notifications." + string(t)
}

// Topic returns the NATS subject for the envelope.
func (e *Envelope) Topic() string {
	return e.EventType.Topic()
}

// Marshal encodes the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes an envelope payload.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// MessageID returns a fresh identifier for the published message. Wire-level
// duplicates are acceptable; idempotent consumers collapse them by MediaID
// and EventType.
func (e *Envelope) MessageID() string {
	return uuid.New().String()
}

// Publisher delivers envelopes to all subscribers at least once.
type Publisher interface {
	Publish(ctx context.Context, env *Envelope) error
	Close() error
}
