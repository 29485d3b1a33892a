// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package media

// StateNone is the pseudo-state for a media identifier with no record yet.
const StateNone State = ""

// Effect describes what the orchestrator must do to apply a transition.
type Effect int

const (
	// EffectNone means the end state is already satisfied: ack the delivery,
	// write the ledger entry, touch nothing else.
	EffectNone Effect = iota
	// EffectIngest means advance the record to PROCESSING and invoke the
	// processing step. Covers first sight, stuck-PENDING recovery, and
	// re-entry of a PROCESSING record after a crash mid-step.
	EffectIngest
	// EffectTombstone means write the REMOVED tombstone and publish a
	// removal notification.
	EffectTombstone
)

// String returns the effect name for logging.
func (e Effect) String() string {
	switch e {
	case EffectIngest:
		return "ingest"
	case EffectTombstone:
		return "tombstone"
	default:
		return "none"
	}
}

// Transition is the outcome of the state machine for one (state, change) pair.
type Transition struct {
	Next   State
	Effect Effect
}

// Next computes the transition for the current state and change type.
//
// The function is total over {none, PENDING, PROCESSING, COMPLETED, FAILED,
// REMOVED} x {created, removed}; unknown inputs resolve to no-ops so a
// corrupt record can never wedge a delivery.
//
//	current      created               removed
//	(none)       -> PROCESSING, ingest    no-op (absence already satisfied)
//	PENDING      -> PROCESSING, ingest    -> REMOVED, tombstone
//	PROCESSING   -> PROCESSING, ingest    -> REMOVED, tombstone
//	COMPLETED    no-op (replay)           -> REMOVED, tombstone
//	FAILED       no-op (replay)           -> REMOVED, tombstone
//	REMOVED      no-op                    no-op
func Next(current State, change ChangeType) Transition {
	switch change {
	case ChangeCreated:
		switch current {
		case StateNone, StatePending, StateProcessing:
			return Transition{Next: StateProcessing, Effect: EffectIngest}
		default:
			// COMPLETED, FAILED, REMOVED: a replayed created event after the
			// ledger entry expired. The work is done; converge as a no-op.
			return Transition{Next: current, Effect: EffectNone}
		}
	case ChangeRemoved:
		switch current {
		case StateNone, StateRemoved:
			return Transition{Next: current, Effect: EffectNone}
		default:
			return Transition{Next: StateRemoved, Effect: EffectTombstone}
		}
	default:
		return Transition{Next: current, Effect: EffectNone}
	}
}
