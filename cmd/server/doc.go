// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Command server runs the Conveyor pipeline: an embedded (or external) NATS
// JetStream transport, the Badger record store, the batch consumer, and the
// ops HTTP surface, all under one supervisor tree.
package main
