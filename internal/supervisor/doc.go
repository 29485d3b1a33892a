// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package supervisor builds the suture tree that runs Conveyor's long-lived
// services. Layers isolate failures: a crashing consumer restarts without
// touching the ops HTTP server, and vice versa.
package supervisor
