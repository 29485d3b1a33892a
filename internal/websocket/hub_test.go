// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/conveyor-media/conveyor/internal/media"
	"github.com/conveyor-media/conveyor/internal/notify"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("hub did not stop")
		}
	})
	return hub, cancel
}

func registeredClient(t *testing.T, hub *Hub) *Client {
	t.Helper()
	client := NewClient(hub, nil)
	hub.Register <- client
	waitForCount(t, hub, func(n int) bool { return n > 0 })
	return client
}

func waitForCount(t *testing.T, hub *Hub, ok func(int) bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if ok(hub.ClientCount()) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("client count stuck at %d", hub.ClientCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub, _ := startHub(t)

	client := registeredClient(t, hub)
	if hub.ClientCount() != 1 {
		t.Fatalf("ClientCount = %d, want 1", hub.ClientCount())
	}

	hub.Unregister <- client
	waitForCount(t, hub, func(n int) bool { return n == 0 })
}

func TestHub_BroadcastNotification(t *testing.T) {
	hub, _ := startHub(t)
	client := registeredClient(t, hub)

	env := &notify.Envelope{
		MediaID:   "m-1",
		EventType: notify.EventCompleted,
		State:     media.StateCompleted,
		Timestamp: time.Now().UTC(),
	}
	hub.BroadcastNotification(env)

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeNotification {
			t.Errorf("Type = %q", msg.Type)
		}
		got, ok := msg.Data.(*notify.Envelope)
		if !ok {
			t.Fatalf("Data is %T", msg.Data)
		}
		if got.MediaID != "m-1" || got.EventType != notify.EventCompleted {
			t.Errorf("unexpected envelope: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestHub_BroadcastOrderByClientID(t *testing.T) {
	hub, _ := startHub(t)

	first := registeredClient(t, hub)
	second := NewClient(hub, nil)
	hub.Register <- second
	waitForCount(t, hub, func(n int) bool { return n == 2 })

	if first.ID() >= second.ID() {
		t.Errorf("IDs not monotonic: %d then %d", first.ID(), second.ID())
	}

	env := &notify.Envelope{MediaID: "m-2", EventType: notify.EventRemoved}
	hub.BroadcastNotification(env)

	for i, c := range []*Client{first, second} {
		select {
		case <-c.send:
		case <-time.After(time.Second):
			t.Fatalf("client %d got nothing", i)
		}
	}
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub, _ := startHub(t)
	client := registeredClient(t, hub)

	// Fill the client's send buffer without draining it.
	for i := 0; i < cap(client.send)+8; i++ {
		hub.BroadcastNotification(&notify.Envelope{MediaID: "flood"})
	}

	waitForCount(t, hub, func(n int) bool { return n == 0 })
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	client := NewClient(hub, nil)
	hub.Register <- client
	waitForCount(t, hub, func(n int) bool { return n == 1 })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("clients not closed on shutdown: %d", hub.ClientCount())
	}
	if _, open := <-client.send; open {
		t.Error("client send channel left open")
	}
}

func TestFeed_BridgesNotifications(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	hub, _ := startHub(t)
	client := registeredClient(t, hub)

	feed := NewFeed(pubsub, hub, DefaultTopics())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = feed.Serve(ctx) }()

	// Give the feed's subscriptions a moment to land.
	time.Sleep(20 * time.Millisecond)

	env := &notify.Envelope{
		MediaID:   "feed-1",
		EventType: notify.EventFailed,
		State:     media.StateFailed,
		Timestamp: time.Now().UTC(),
	}
	payload, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	msg := message.NewMessage(env.MessageID(), payload)
	if err := pubsub.Publish(env.Topic(), msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-client.send:
		data, ok := got.Data.(*notify.Envelope)
		if !ok {
			t.Fatalf("Data is %T", got.Data)
		}
		if data.MediaID != "feed-1" || data.EventType != notify.EventFailed {
			t.Errorf("unexpected envelope: %+v", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never reached the hub client")
	}
}

func TestFeed_SurvivesUnparseable(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { _ = pubsub.Close() })

	hub, _ := startHub(t)
	client := registeredClient(t, hub)

	topic := notify.EventCompleted.Topic()
	feed := NewFeed(pubsub, hub, []string{topic})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = feed.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)

	bad := message.NewMessage("bad", []byte("{broken"))
	if err := pubsub.Publish(topic, bad); err != nil {
		t.Fatalf("publish: %v", err)
	}

	// A malformed payload must be acked and dropped, not wedge the pump:
	// the next valid notification still flows through.
	env := &notify.Envelope{MediaID: "after-bad", EventType: notify.EventCompleted}
	payload, err := env.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := pubsub.Publish(topic, message.NewMessage(env.MessageID(), payload)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-client.send:
		data, ok := got.Data.(*notify.Envelope)
		if !ok || data.MediaID != "after-bad" {
			t.Errorf("unexpected message after malformed input: %+v", got.Data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed wedged after malformed payload")
	}
}
