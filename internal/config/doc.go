// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

// Package config loads pipeline configuration through koanf with a fixed
// precedence: built-in defaults, then an optional YAML file, then CONVEYOR_
// environment variables. The merged result is validated before use.
package config
