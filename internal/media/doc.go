// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package media defines the canonical media lifecycle entities: the
// MediaRecord persisted per media object, the StorageEvent consumed from
// object storage, and the lifecycle state machine that maps (state, change)
// pairs to transitions.
//
// The state machine is total: every combination of current state and change
// type has a defined transition, including no-ops. Illegal combinations
// (for example a removal for a media that was never seen) resolve to no-ops
// because the desired end state is already satisfied.
//
// All mutation of MediaRecord happens through the pipeline orchestrator via
// version-guarded writes; this package holds no mutable state of its own.
package media
