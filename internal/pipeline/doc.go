// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package pipeline is the core of Conveyor: the orchestrator that drives
// batches of storage events through the media state machine with
// exactly-once-in-effect semantics under at-least-once delivery.
//
// The orchestrator is stateless between batches. All coordination with
// concurrent replicas happens through the record store's version-guarded
// writes and the idempotency ledger; there are no locks and no in-process
// shared mutable state beyond configuration.
//
// Per-event outcomes are independent: one event's failure never changes
// another's ack. The delivery integration (Consumer) applies the resulting
// BatchReport by acking or releasing each delivery handle.
package pipeline
