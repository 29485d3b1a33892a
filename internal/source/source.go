// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package source abstracts the upstream notification queue that delivers
// object-storage change events. Events arrive at least once, in no
// guaranteed order, in bounded batches; each delivery carries a handle used
// to acknowledge it or release it for redelivery.
//
// Two implementations exist: a NATS JetStream source for production and a
// Watermill gochannel source for tests and standalone mode. Both share the
// same batching loop over a watermill subscription.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/conveyor-media/conveyor/internal/media"
	"github.com/conveyor-media/conveyor/internal/metrics"
)

// MetadataEventID is the message metadata key carrying the storage event ID.
// JetStream preserves metadata across redelivery, which keeps the ID stable
// for the idempotency ledger.
const MetadataEventID = "event_id"

// ErrSourceClosed is returned by ReceiveBatch after the subscription ends.
var ErrSourceClosed = errors.New("event source closed")

// Handle acknowledges or releases one delivery.
type Handle interface {
	// Ack removes the delivery from future redelivery.
	Ack()
	// Release makes the delivery eligible for redelivery after the
	// visibility delay owned by the queue infrastructure.
	Release()
}

// DeliveredEvent is one queued storage event with its delivery handle.
type DeliveredEvent struct {
	// EventID is delivery-unique and stable across redelivery.
	EventID string
	// Payload is the raw storage event JSON.
	Payload []byte
	Handle  Handle
}

// BatchSource delivers storage events in bounded batches.
type BatchSource interface {
	// ReceiveBatch blocks until at least one event is available (or ctx is
	// done), then returns up to the configured batch size. Returns
	// ErrSourceClosed once the underlying subscription is closed.
	ReceiveBatch(ctx context.Context) ([]DeliveredEvent, error)
	Close() error
}

// BatchConfig bounds batch collection.
type BatchConfig struct {
	// Size is the maximum events per batch. Default: 10.
	Size int
	// Wait is how long to keep collecting after the first event before the
	// batch is cut. Default: 200ms.
	Wait time.Duration
}

// DefaultBatchConfig returns production defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Size: 10,
		Wait: 200 * time.Millisecond,
	}
}

func (c *BatchConfig) applyDefaults() {
	if c.Size <= 0 {
		c.Size = 10
	}
	if c.Wait <= 0 {
		c.Wait = 200 * time.Millisecond
	}
}

// WatermillSource adapts a watermill subscription to the BatchSource
// contract. Ack maps to msg.Ack, Release to msg.Nack; redelivery timing is
// owned by the transport (JetStream AckWait for NATS).
type WatermillSource struct {
	subscriber message.Subscriber
	messages   <-chan *message.Message
	config     BatchConfig
}

// NewWatermillSource subscribes to topic and returns a batching source.
func NewWatermillSource(ctx context.Context, sub message.Subscriber, topic string, cfg BatchConfig) (*WatermillSource, error) {
	cfg.applyDefaults()

	messages, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	return &WatermillSource{
		subscriber: sub,
		messages:   messages,
		config:     cfg,
	}, nil
}

// ReceiveBatch blocks for the first event, then collects more until the
// batch is full or the wait window elapses.
func (s *WatermillSource) ReceiveBatch(ctx context.Context) ([]DeliveredEvent, error) {
	var batch []DeliveredEvent

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.messages:
		if !ok {
			return nil, ErrSourceClosed
		}
		batch = append(batch, delivered(msg))
	}

	timer := time.NewTimer(s.config.Wait)
	defer timer.Stop()

	for len(batch) < s.config.Size {
		select {
		case <-ctx.Done():
			// Partial batch is still valid; the caller decides what to do
			// with the context error on the next receive.
			return batch, nil
		case <-timer.C:
			return batch, nil
		case msg, ok := <-s.messages:
			if !ok {
				return batch, nil
			}
			batch = append(batch, delivered(msg))
		}
	}
	return batch, nil
}

// Close shuts down the underlying subscriber.
func (s *WatermillSource) Close() error {
	return s.subscriber.Close()
}

func delivered(msg *message.Message) DeliveredEvent {
	metrics.RecordEventConsumed()
	eventID := msg.Metadata.Get(MetadataEventID)
	if eventID == "" {
		// Producers outside our control may omit the header; the message
		// UUID is still stable per logical message in watermill transports.
		eventID = msg.UUID
	}
	return DeliveredEvent{
		EventID: eventID,
		Payload: msg.Payload,
		Handle:  messageHandle{msg: msg},
	}
}

// messageHandle maps the Handle contract onto a watermill message.
type messageHandle struct {
	msg *message.Message
}

func (h messageHandle) Ack()     { h.msg.Ack() }
func (h messageHandle) Release() { h.msg.Nack() }

// NewMessage builds a watermill message for a storage event, with the event
// ID carried in metadata so consumers key their ledger without parsing.
func NewMessage(ev *media.StorageEvent) (*message.Message, error) {
	payload, err := ev.Marshal()
	if err != nil {
		return nil, err
	}
	msg := message.NewMessage(ev.EventID, payload)
	msg.Metadata.Set(MetadataEventID, ev.EventID)
	return msg, nil
}
