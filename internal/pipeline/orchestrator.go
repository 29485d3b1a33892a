// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/conveyor-media/conveyor/internal/logging"
	"github.com/conveyor-media/conveyor/internal/media"
	"github.com/conveyor-media/conveyor/internal/metrics"
	"github.com/conveyor-media/conveyor/internal/notify"
	"github.com/conveyor-media/conveyor/internal/source"
	"github.com/conveyor-media/conveyor/internal/store"
)

// RecordStore is the orchestrator's view of the media record store.
type RecordStore interface {
	Get(ctx context.Context, mediaID string) (*media.MediaRecord, error)
	PutIfVersion(ctx context.Context, rec *media.MediaRecord, expectedVersion uint64) error
}

// Ledger is the orchestrator's view of the idempotency ledger.
type Ledger interface {
	Seen(ctx context.Context, eventID string) (bool, store.Outcome, error)
	MarkProcessed(ctx context.Context, eventID string, outcome store.Outcome) error
}

// Step is one bounded-time processing unit invoked per ingested media.
// Execute must be deterministic for the same input (or internally
// idempotent) so redelivered events converge. The orchestrator enforces the
// timeout; implementations only need to honor ctx.
//
// Returned metadata is merged into the record on success. Errors wrapped in
// RetryableError release the delivery; anything else is a terminal business
// failure persisted as FAILED.
type Step interface {
	Name() string
	Execute(ctx context.Context, rec *media.MediaRecord) (map[string]string, error)
}

// Config bounds orchestrator behavior.
type Config struct {
	// StepTimeout caps each processing step invocation. Default: 30s.
	StepTimeout time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{StepTimeout: 30 * time.Second}
}

// Orchestrator drives storage events through the media state machine.
//
// It holds no authoritative state between batches: every event re-reads the
// record store, and all writes are version-guarded, so any number of
// replicas may process overlapping deliveries concurrently.
type Orchestrator struct {
	records   RecordStore
	ledger    Ledger
	step      Step
	publisher notify.Publisher
	config    Config
	logger    zerolog.Logger

	eventsSeen    atomic.Int64
	eventsApplied atomic.Int64
	eventsSkipped atomic.Int64
	eventsFailed  atomic.Int64
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(records RecordStore, ledger Ledger, step Step, publisher notify.Publisher, cfg Config) *Orchestrator {
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 30 * time.Second
	}
	return &Orchestrator{
		records:   records,
		ledger:    ledger,
		step:      step,
		publisher: publisher,
		config:    cfg,
		logger:    logging.With().Str("component", "pipeline").Logger(),
	}
}

// ProcessBatch processes every event in the batch independently and returns
// one outcome per event, in input order. A failure in one event never
// changes the outcome of another.
func (o *Orchestrator) ProcessBatch(ctx context.Context, batch []source.DeliveredEvent) BatchReport {
	start := time.Now()
	outcomes := make([]Outcome, len(batch))
	for i, ev := range batch {
		outcomes[i] = o.processEvent(ctx, ev)
	}
	metrics.RecordBatch(len(batch), time.Since(start))
	return BatchReport{Outcomes: outcomes}
}

func (o *Orchestrator) processEvent(ctx context.Context, ev source.DeliveredEvent) Outcome {
	o.eventsSeen.Add(1)
	out := o.resolveEvent(ctx, ev)
	metrics.RecordEventOutcome(string(out.Action), out.Reason)
	return out
}

func (o *Orchestrator) resolveEvent(ctx context.Context, ev source.DeliveredEvent) Outcome {
	// Ledger short-circuit: a present entry means all side effects are
	// already durable.
	seen, _, err := o.ledger.Seen(ctx, ev.EventID)
	if err != nil {
		o.logger.Error().Err(err).Str("event_id", ev.EventID).Msg("ledger read failed")
		return Outcome{EventID: ev.EventID, Action: ActionRelease, Reason: ReasonStoreError}
	}
	if seen {
		o.eventsSkipped.Add(1)
		metrics.RecordEventDeduplicated()
		o.logger.Debug().Str("event_id", ev.EventID).Msg("duplicate event, ledger hit")
		return Outcome{EventID: ev.EventID, Action: ActionAck, Reason: ReasonDuplicate}
	}

	sev, err := media.ParseStorageEvent(ev.Payload)
	if err != nil {
		// Redelivery can never fix a malformed payload: record and ack.
		o.eventsFailed.Add(1)
		o.logger.Error().Err(err).Str("event_id", ev.EventID).Msg("malformed storage event")
		o.markLedger(ctx, ev.EventID, store.OutcomeSkipped)
		return Outcome{EventID: ev.EventID, Action: ActionAck, Reason: ReasonMalformed}
	}

	res, err := o.applyOnce(ctx, ev.EventID, sev)
	if errors.Is(err, store.ErrVersionConflict) {
		// Concurrent redelivery raced us. Re-read and retry the transition
		// once; the second attempt usually lands on a converged no-op.
		o.logger.Debug().Str("event_id", ev.EventID).Str("media_id", sev.MediaID).Msg("version conflict, retrying transition")
		res, err = o.applyOnce(ctx, ev.EventID, sev)
	}
	switch {
	case errors.Is(err, store.ErrVersionConflict):
		return Outcome{EventID: ev.EventID, Action: ActionRelease, Reason: ReasonConflict}
	case err != nil:
		o.logger.Error().Err(err).Str("event_id", ev.EventID).Str("media_id", sev.MediaID).Msg("store failure")
		return Outcome{EventID: ev.EventID, Action: ActionRelease, Reason: ReasonStoreError}
	}
	return Outcome{EventID: ev.EventID, Action: res.action, Reason: res.reason}
}

type result struct {
	action Action
	reason string
}

// applyOnce runs one attempt of the transition. A store.ErrVersionConflict
// return means the caller may retry with fresh state; any other error is an
// infra failure worth releasing.
func (o *Orchestrator) applyOnce(ctx context.Context, eventID string, sev *media.StorageEvent) (result, error) {
	rec, err := o.records.Get(ctx, sev.MediaID)
	if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
		return result{}, err
	}

	current := media.StateNone
	if rec != nil {
		current = rec.State
	}

	tr := media.Next(current, sev.ChangeType)
	switch tr.Effect {
	case media.EffectIngest:
		return o.ingest(ctx, eventID, sev, rec)
	case media.EffectTombstone:
		return o.tombstone(ctx, eventID, rec)
	default:
		o.eventsSkipped.Add(1)
		o.markLedger(ctx, eventID, store.OutcomeSkipped)
		o.logger.Debug().
			Str("event_id", eventID).
			Str("media_id", sev.MediaID).
			Str("state", string(current)).
			Str("change", string(sev.ChangeType)).
			Msg("transition is a no-op")
		return result{action: ActionAck, reason: ReasonNoop}, nil
	}
}

// ingest advances the record to PROCESSING, runs the step, and persists the
// terminal state. The PROCESSING write lands before the step so a crash
// mid-step leaves a re-enterable record instead of a silently stuck PENDING.
func (o *Orchestrator) ingest(ctx context.Context, eventID string, sev *media.StorageEvent, rec *media.MediaRecord) (result, error) {
	if rec == nil {
		rec = media.NewRecord(sev, time.Now())
		rec.State = media.StateProcessing
		if err := o.records.PutIfVersion(ctx, rec, 0); err != nil {
			return result{}, err
		}
	} else {
		work := rec.Clone()
		work.State = media.StateProcessing
		work.StorageKey = sev.StorageKey
		work.SizeBytes = sev.SizeBytes
		work.ContentType = sev.ContentType
		work.LastError = ""
		if err := o.records.PutIfVersion(ctx, work, rec.Version); err != nil {
			return result{}, err
		}
		rec = work
	}

	md, stepErr := o.runStep(ctx, rec)
	switch {
	case stepErr == nil:
		done := rec.Clone()
		done.State = media.StateCompleted
		done.LastError = ""
		if len(md) > 0 {
			if done.Metadata == nil {
				done.Metadata = make(map[string]string, len(md))
			}
			for k, v := range md {
				done.Metadata[k] = v
			}
		}
		if err := o.records.PutIfVersion(ctx, done, rec.Version); err != nil {
			return result{}, err
		}
		o.eventsApplied.Add(1)
		o.publish(ctx, done, notify.EventCompleted)
		o.markLedger(ctx, eventID, store.OutcomeApplied)
		return result{action: ActionAck, reason: ReasonApplied}, nil

	case errors.Is(stepErr, context.DeadlineExceeded):
		// Infra-level: leave the record in PROCESSING and release. The next
		// delivery re-enters through the version guard.
		o.logger.Warn().
			Str("event_id", eventID).
			Str("media_id", rec.MediaID).
			Dur("timeout", o.config.StepTimeout).
			Msg("processing step timed out")
		return result{action: ActionRelease, reason: ReasonTimeout}, nil

	case IsRetryable(stepErr):
		o.logger.Warn().Err(stepErr).
			Str("event_id", eventID).
			Str("media_id", rec.MediaID).
			Msg("processing step failed transiently")
		return result{action: ActionRelease, reason: ReasonRetryable}, nil

	default:
		// Legitimate business failure: persist FAILED and ack. Retrying
		// would only burn redeliveries on the same outcome.
		failed := rec.Clone()
		failed.State = media.StateFailed
		failed.LastError = stepErr.Error()
		if err := o.records.PutIfVersion(ctx, failed, rec.Version); err != nil {
			return result{}, err
		}
		o.eventsFailed.Add(1)
		o.publish(ctx, failed, notify.EventFailed)
		o.markLedger(ctx, eventID, store.OutcomeApplied)
		return result{action: ActionAck, reason: ReasonStepFailed}, nil
	}
}

func (o *Orchestrator) tombstone(ctx context.Context, eventID string, rec *media.MediaRecord) (result, error) {
	work := rec.Clone()
	work.State = media.StateRemoved
	if err := o.records.PutIfVersion(ctx, work, rec.Version); err != nil {
		return result{}, err
	}
	o.eventsApplied.Add(1)
	o.publish(ctx, work, notify.EventRemoved)
	o.markLedger(ctx, eventID, store.OutcomeApplied)
	return result{action: ActionAck, reason: ReasonApplied}, nil
}

func (o *Orchestrator) runStep(ctx context.Context, rec *media.MediaRecord) (map[string]string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, o.config.StepTimeout)
	defer cancel()

	start := time.Now()
	md, err := o.step.Execute(stepCtx, rec.Clone())
	elapsed := time.Since(start)

	outcome := "success"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case err != nil:
		outcome = "failure"
	}
	metrics.RecordStepDuration(o.step.Name(), outcome, elapsed)
	return md, err
}

// publish sends the notification and logs failures. Publishing is
// fire-and-forget: the record write already happened and at-least-once
// delivery is the resilience strategy, so a failed publish never blocks ack.
func (o *Orchestrator) publish(ctx context.Context, rec *media.MediaRecord, eventType notify.EventType) {
	env := notify.NewEnvelope(rec, eventType)
	if err := o.publisher.Publish(ctx, env); err != nil {
		o.logger.Error().Err(err).
			Str("media_id", rec.MediaID).
			Str("event_type", string(eventType)).
			Msg("notification publish failed")
	}
}

// markLedger records the event as processed. A failed ledger write is
// logged, not propagated: the delivery is still acked, and if this replica
// dies before a retried delivery, the transitions themselves are idempotent.
func (o *Orchestrator) markLedger(ctx context.Context, eventID string, outcome store.Outcome) {
	if err := o.ledger.MarkProcessed(ctx, eventID, outcome); err != nil {
		o.logger.Error().Err(err).Str("event_id", eventID).Msg("ledger write failed")
	}
}

// Stats returns cumulative orchestrator counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		EventsSeen:    o.eventsSeen.Load(),
		EventsApplied: o.eventsApplied.Load(),
		EventsSkipped: o.eventsSkipped.Load(),
		EventsFailed:  o.eventsFailed.Load(),
	}
}

// Stats holds cumulative counters for health reporting.
type Stats struct {
	EventsSeen    int64
	EventsApplied int64
	EventsSkipped int64
	EventsFailed  int64
}
