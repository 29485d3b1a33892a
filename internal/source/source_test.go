// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/conveyor-media/conveyor/internal/media"
)

const testTopic = "media.events.created"

func newPubSub(t *testing.T) *gochannel.GoChannel {
	t.Helper()
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })
	return pubsub
}

func testEvent(mediaID string) *media.StorageEvent {
	return &media.StorageEvent{
		EventID:     uuid.NewString(),
		MediaID:     mediaID,
		ChangeType:  media.ChangeCreated,
		StorageKey:  "objects/" + mediaID + ".mp4",
		SizeBytes:   512,
		ContentType: "video/mp4",
		Timestamp:   time.Now().UTC(),
	}
}

func publishEvent(t *testing.T, pubsub *gochannel.GoChannel, ev *media.StorageEvent) {
	t.Helper()
	msg, err := NewMessage(ev)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if err := pubsub.Publish(testTopic, msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestWatermillSource_SingleEvent(t *testing.T) {
	pubsub := newPubSub(t)
	ctx := context.Background()

	src, err := NewWatermillSource(ctx, pubsub, testTopic, BatchConfig{Size: 10, Wait: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatermillSource: %v", err)
	}

	ev := testEvent("m-1")
	publishEvent(t, pubsub, ev)

	batch, err := src.ReceiveBatch(ctx)
	if err != nil {
		t.Fatalf("ReceiveBatch: %v", err)
	}
	if len(batch) != 1 {
		t.Fatalf("batch size = %d, want 1", len(batch))
	}
	if batch[0].EventID != ev.EventID {
		t.Errorf("EventID = %q, want %q", batch[0].EventID, ev.EventID)
	}

	parsed, err := media.ParseStorageEvent(batch[0].Payload)
	if err != nil {
		t.Fatalf("payload did not round-trip: %v", err)
	}
	if parsed.MediaID != "m-1" {
		t.Errorf("MediaID = %q", parsed.MediaID)
	}
}

// channelSource builds a WatermillSource over a raw message channel so batch
// collection can be tested without a transport's delivery semantics.
func channelSource(cfg BatchConfig) (*WatermillSource, chan *message.Message) {
	cfg.applyDefaults()
	ch := make(chan *message.Message, 64)
	return &WatermillSource{messages: ch, config: cfg}, ch
}

func TestWatermillSource_BatchFillsToSize(t *testing.T) {
	src, ch := channelSource(BatchConfig{Size: 3, Wait: time.Second})

	for i := 0; i < 5; i++ {
		msg, err := NewMessage(testEvent("m-batch"))
		if err != nil {
			t.Fatalf("NewMessage: %v", err)
		}
		ch <- msg
	}

	batch, err := src.ReceiveBatch(context.Background())
	if err != nil {
		t.Fatalf("ReceiveBatch: %v", err)
	}
	if len(batch) != 3 {
		t.Errorf("batch size = %d, want cut at 3", len(batch))
	}

	// The remaining messages form the next batch.
	batch, err = src.ReceiveBatch(context.Background())
	if err != nil {
		t.Fatalf("ReceiveBatch: %v", err)
	}
	if len(batch) != 2 {
		t.Errorf("second batch size = %d, want 2", len(batch))
	}
}

func TestWatermillSource_ClosedChannelMidBatch(t *testing.T) {
	src, ch := channelSource(BatchConfig{Size: 10, Wait: time.Second})

	msg, err := NewMessage(testEvent("m-last"))
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	ch <- msg
	close(ch)

	// First event arrives, then the closed channel cuts the batch.
	batch, err := src.ReceiveBatch(context.Background())
	if err != nil {
		t.Fatalf("ReceiveBatch: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("batch size = %d, want 1", len(batch))
	}

	// Next receive reports the closed source.
	if _, err := src.ReceiveBatch(context.Background()); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("ReceiveBatch returned %v, want ErrSourceClosed", err)
	}
}

func TestWatermillSource_WaitWindowCutsPartialBatch(t *testing.T) {
	pubsub := newPubSub(t)
	ctx := context.Background()

	src, err := NewWatermillSource(ctx, pubsub, testTopic, BatchConfig{Size: 10, Wait: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewWatermillSource: %v", err)
	}

	publishEvent(t, pubsub, testEvent("m-solo"))

	start := time.Now()
	batch, err := src.ReceiveBatch(ctx)
	if err != nil {
		t.Fatalf("ReceiveBatch: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("batch size = %d, want 1", len(batch))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("wait window not honored, took %s", elapsed)
	}
}

func TestWatermillSource_ContextCancel(t *testing.T) {
	pubsub := newPubSub(t)

	src, err := NewWatermillSource(context.Background(), pubsub, testTopic, DefaultBatchConfig())
	if err != nil {
		t.Fatalf("NewWatermillSource: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = src.ReceiveBatch(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ReceiveBatch returned %v, want context.Canceled", err)
	}
}

func TestWatermillSource_ClosedSubscription(t *testing.T) {
	pubsub := newPubSub(t)
	ctx := context.Background()

	src, err := NewWatermillSource(ctx, pubsub, testTopic, DefaultBatchConfig())
	if err != nil {
		t.Fatalf("NewWatermillSource: %v", err)
	}
	if err := pubsub.Close(); err != nil {
		t.Fatalf("close pubsub: %v", err)
	}

	_, err = src.ReceiveBatch(ctx)
	if !errors.Is(err, ErrSourceClosed) {
		t.Errorf("ReceiveBatch returned %v, want ErrSourceClosed", err)
	}
}

func TestDelivered_EventIDFallsBackToUUID(t *testing.T) {
	msg := message.NewMessage("msg-uuid-1", []byte("{}"))
	ev := delivered(msg)
	if ev.EventID != "msg-uuid-1" {
		t.Errorf("EventID = %q, want message UUID", ev.EventID)
	}

	msg2 := message.NewMessage("msg-uuid-2", []byte("{}"))
	msg2.Metadata.Set(MetadataEventID, "explicit-id")
	ev2 := delivered(msg2)
	if ev2.EventID != "explicit-id" {
		t.Errorf("EventID = %q, want metadata value", ev2.EventID)
	}
}

func TestHandle_AckRelease(t *testing.T) {
	t.Run("ack", func(t *testing.T) {
		msg := message.NewMessage("h-1", nil)
		h := messageHandle{msg: msg}
		h.Ack()
		select {
		case <-msg.Acked():
		default:
			t.Error("message not acked")
		}
	})

	t.Run("release", func(t *testing.T) {
		msg := message.NewMessage("h-2", nil)
		h := messageHandle{msg: msg}
		h.Release()
		select {
		case <-msg.Nacked():
		default:
			t.Error("message not nacked")
		}
	})
}

func TestNewMessage(t *testing.T) {
	ev := testEvent("m-msg")
	msg, err := NewMessage(ev)
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}
	if msg.UUID != ev.EventID {
		t.Errorf("UUID = %q, want event ID", msg.UUID)
	}
	if got := msg.Metadata.Get(MetadataEventID); got != ev.EventID {
		t.Errorf("metadata event_id = %q", got)
	}
	parsed, err := media.ParseStorageEvent(msg.Payload)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if parsed.EventID != ev.EventID {
		t.Errorf("payload EventID = %q", parsed.EventID)
	}
}

func TestBatchConfig_Defaults(t *testing.T) {
	var cfg BatchConfig
	cfg.applyDefaults()
	if cfg.Size != 10 || cfg.Wait != 200*time.Millisecond {
		t.Errorf("defaults = %+v", cfg)
	}
}
