// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package eventstream owns the NATS JetStream plumbing shared by the event
// source and the notification publisher: the optional embedded server,
// stream provisioning, and watermill subscriber/publisher construction.
//
// Nothing in here knows about media semantics; it deals in streams,
// subjects, and durable consumers only.
package eventstream
