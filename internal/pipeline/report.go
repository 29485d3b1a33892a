// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package pipeline

// Action tells the delivery layer what to do with one delivery.
type Action string

const (
	// ActionAck removes the delivery from future redelivery.
	ActionAck Action = "ack"
	// ActionRelease makes the delivery eligible for redelivery.
	ActionRelease Action = "release"
)

// Reasons recorded per outcome, for logs and metrics.
const (
	ReasonApplied    = "applied"     // transition applied and persisted
	ReasonDuplicate  = "duplicate"   // short-circuited at the ledger
	ReasonNoop       = "noop"        // transition was a defined no-op
	ReasonMalformed  = "malformed"   // unparseable payload, never retried
	ReasonStepFailed = "step_failed" // business failure, persisted as FAILED
	ReasonTimeout    = "timeout"     // step timed out, released for retry
	ReasonRetryable  = "step_retry"  // step infra failure, released
	ReasonConflict   = "conflict"    // version conflict persisted past retry
	ReasonStoreError = "store_error" // store unreachable or failing
)

// Outcome is the per-event result of a batch.
type Outcome struct {
	EventID string
	Action  Action
	// Reason is one of the Reason* constants.
	Reason string
}

// BatchReport lists one outcome per input event, in input order.
type BatchReport struct {
	Outcomes []Outcome
}

// Acked counts ack outcomes.
func (r BatchReport) Acked() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == ActionAck {
			n++
		}
	}
	return n
}

// Released counts release outcomes.
func (r BatchReport) Released() int {
	return len(r.Outcomes) - r.Acked()
}
