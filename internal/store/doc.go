// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package store provides the durable BadgerDB-backed stores for the pipeline:
// the media record store with version-guarded conditional writes, and the
// idempotency ledger of processed event identifiers.
//
// Both stores share one Badger database. All coordination between concurrent
// pipeline replicas happens through these conditional writes; there are no
// locks. Ledger entries carry a retention TTL and may expire without
// affecting correctness, since record transitions are themselves idempotent.
package store
