// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/conveyor-media/conveyor/internal/logging"
	"github.com/conveyor-media/conveyor/internal/source"
)

// Consumer pulls event batches from a source, hands them to the
// orchestrator, and applies the resulting per-event dispositions to the
// delivery handles. It implements suture.Service and runs until its context
// is canceled.
type Consumer struct {
	source       source.BatchSource
	orchestrator *Orchestrator
	logger       zerolog.Logger
}

// NewConsumer builds a consumer over the given source and orchestrator.
func NewConsumer(src source.BatchSource, orch *Orchestrator) *Consumer {
	return &Consumer{
		source:       src,
		orchestrator: orch,
		logger:       logging.With().Str("component", "consumer").Logger(),
	}
}

// Serve runs the consume loop until ctx is canceled or the source closes.
func (c *Consumer) Serve(ctx context.Context) error {
	c.logger.Info().Msg("consumer started")

	for {
		batch, err := c.source.ReceiveBatch(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			c.logger.Info().Msg("consumer stopping")
			return ctx.Err()
		case errors.Is(err, source.ErrSourceClosed):
			c.logger.Info().Msg("event source closed")
			return fmt.Errorf("event source closed: %w", err)
		case err != nil:
			c.logger.Error().Err(err).Msg("batch receive failed")
			return fmt.Errorf("receive batch: %w", err)
		}
		if len(batch) == 0 {
			continue
		}

		report := c.orchestrator.ProcessBatch(ctx, batch)
		c.apply(batch, report)
	}
}

// apply settles each delivery according to its outcome. Outcomes are
// positional: report.Outcomes[i] disposes batch[i].
func (c *Consumer) apply(batch []source.DeliveredEvent, report BatchReport) {
	for i, out := range report.Outcomes {
		if i >= len(batch) {
			break
		}
		switch out.Action {
		case ActionAck:
			batch[i].Handle.Ack()
		case ActionRelease:
			batch[i].Handle.Release()
		}
	}
	c.logger.Debug().
		Int("batch", len(batch)).
		Int("acked", report.Acked()).
		Int("released", report.Released()).
		Msg("batch settled")
}

func (c *Consumer) String() string { return "pipeline.Consumer" }
