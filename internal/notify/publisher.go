// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/conveyor-media/conveyor/internal/metrics"
)

// WatermillPublisher implements Publisher over any watermill transport
// (NATS JetStream in production, gochannel in tests), with optional circuit
// breaker protection so a down broker sheds publish attempts fast instead of
// stalling batch processing.
type WatermillPublisher struct {
	publisher      message.Publisher
	circuitBreaker *gobreaker.CircuitBreaker[any]
	logger         watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewWatermillPublisher wraps a watermill publisher.
func NewWatermillPublisher(pub message.Publisher, logger watermill.LoggerAdapter) (*WatermillPublisher, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logger == nil {
		logger = watermill.NewStdLogger(false, false)
	}
	return &WatermillPublisher{
		publisher: pub,
		logger:    logger,
	}, nil
}

// WithCircuitBreaker installs a breaker that opens after consecutive publish
// failures. While open, Publish fails immediately with gobreaker's error.
func (p *WatermillPublisher) WithCircuitBreaker(name string, maxFailures uint32, openFor time.Duration) *WatermillPublisher {
	p.circuitBreaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    name,
		Timeout: openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
	})
	return p
}

// Publish delivers the envelope to its topic.
func (p *WatermillPublisher) Publish(ctx context.Context, env *Envelope) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return fmt.Errorf("publisher is closed")
	}
	p.mu.RUnlock()

	payload, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := message.NewMessage(env.MessageID(), payload)
	msg.SetContext(ctx)

	if p.circuitBreaker != nil {
		_, err = p.circuitBreaker.Execute(func() (any, error) {
			return nil, p.publisher.Publish(env.Topic(), msg)
		})
	} else {
		err = p.publisher.Publish(env.Topic(), msg)
	}

	if err != nil {
		metrics.RecordNotificationFailure()
		return err
	}
	metrics.RecordNotificationPublished()
	return nil
}

// Close shuts down the underlying publisher.
func (p *WatermillPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.publisher.Close()
}
