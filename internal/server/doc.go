// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package server exposes the pipeline's operational HTTP surface: liveness
// and readiness probes, Prometheus metrics, media record lookup, and the
// websocket notification stream. It is an ops plane, not a public API.
package server
