// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package step holds the processing steps the pipeline runs for each
// ingested media object. Steps are deterministic for the same input so
// redelivered events converge on the same record state.
//
// Failures split along the pipeline's error taxonomy: a policy violation or
// other permanent verdict fails the media record terminally, while wrapped
// retryable errors release the delivery for another attempt.
package step
