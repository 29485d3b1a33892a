// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package websocket

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/conveyor-media/conveyor/internal/logging"
	"github.com/conveyor-media/conveyor/internal/notify"
)

// Feed bridges notification topics into the hub. It implements
// suture.Service. Every message is acked regardless of parse outcome:
// websocket delivery is a best-effort tap, never a consumer that holds
// redelivery hostage.
type Feed struct {
	subscriber message.Subscriber
	hub        *Hub
	topics     []string
	logger     zerolog.Logger
}

// NewFeed subscribes the hub to the given notification topics.
func NewFeed(sub message.Subscriber, hub *Hub, topics []string) *Feed {
	return &Feed{
		subscriber: sub,
		hub:        hub,
		topics:     topics,
		logger:     logging.With().Str("component", "websocket-feed").Logger(),
	}
}

// DefaultTopics lists the notification topics the feed taps.
func DefaultTopics() []string {
	return []string{
		notify.EventCompleted.Topic(),
		notify.EventFailed.Topic(),
		notify.EventRemoved.Topic(),
	}
}

// Serve consumes each topic until ctx is canceled or a subscription fails.
func (f *Feed) Serve(ctx context.Context) error {
	channels := make([]<-chan *message.Message, 0, len(f.topics))
	for _, topic := range f.topics {
		messages, err := f.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		channels = append(channels, messages)
	}

	var wg sync.WaitGroup
	for i, messages := range channels {
		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			f.pump(topic, messages)
		}(f.topics[i], messages)
	}
	wg.Wait()
	return ctx.Err()
}

func (f *Feed) String() string { return "websocket.Feed" }

func (f *Feed) pump(topic string, messages <-chan *message.Message) {
	for msg := range messages {
		env, err := notify.ParseEnvelope(msg.Payload)
		if err != nil {
			f.logger.Warn().Err(err).Str("topic", topic).Msg("unparseable notification, dropping")
			msg.Ack()
			continue
		}
		f.hub.BroadcastNotification(env)
		msg.Ack()
	}
}
