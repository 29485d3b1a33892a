// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package logging

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

// WatermillAdapter implements watermill.LoggerAdapter on top of zerolog, so
// the message transports log through the same pipeline as everything else.
type WatermillAdapter struct {
	logger zerolog.Logger
}

// NewWatermillAdapter wraps the global logger for watermill.
func NewWatermillAdapter() *WatermillAdapter {
	return &WatermillAdapter{logger: Logger()}
}

// NewWatermillAdapterWithLogger wraps a specific zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWatermillAdapterWithLogger(logger zerolog.Logger) *WatermillAdapter {
	return &WatermillAdapter{logger: logger}
}

// Error logs an error-level message.
func (a *WatermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	addFields(a.logger.Error().Err(err), fields).Msg(msg)
}

// Info logs an info-level message.
func (a *WatermillAdapter) Info(msg string, fields watermill.LogFields) {
	addFields(a.logger.Info(), fields).Msg(msg)
}

// Debug logs a debug-level message.
func (a *WatermillAdapter) Debug(msg string, fields watermill.LogFields) {
	addFields(a.logger.Debug(), fields).Msg(msg)
}

// Trace logs a trace-level message.
func (a *WatermillAdapter) Trace(msg string, fields watermill.LogFields) {
	addFields(a.logger.Trace(), fields).Msg(msg)
}

// With returns a logger with the fields attached to every message.
func (a *WatermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	ctx := a.logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &WatermillAdapter{logger: ctx.Logger()}
}

func addFields(ev *zerolog.Event, fields watermill.LogFields) *zerolog.Event {
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	return ev
}
