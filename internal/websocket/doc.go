// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package websocket streams pipeline notifications to connected browser and
// CLI clients. A hub fans each notification envelope out to every client; a
// feed bridges the notification topics into the hub.
//
// Delivery to clients is best effort: a client that cannot keep up is
// disconnected rather than allowed to apply backpressure to the pipeline.
package websocket
