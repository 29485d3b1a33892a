// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"disabled", zerolog.Disabled},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	defer Init(Config{}) // restore defaults for other tests

	Info().Str("component", "test").Msg("hello")

	out := buf.String()
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"hello"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestWatermillAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewWatermillAdapterWithLogger(NewTestLogger(&buf))

	adapter.Info("processing", watermill.LogFields{"topic": "media.events.created"})
	if out := buf.String(); !strings.Contains(out, "media.events.created") {
		t.Errorf("field missing from output: %s", out)
	}

	buf.Reset()
	child := adapter.With(watermill.LogFields{"handler": "pipeline"})
	child.Debug("detail", nil)
	if out := buf.String(); !strings.Contains(out, "pipeline") {
		t.Errorf("inherited field missing: %s", out)
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&SlogHandler{logger: NewTestLogger(&buf)})

	logger.Info("service started", "service", "consumer", "restarts", int64(2))

	out := buf.String()
	if !strings.Contains(out, `"service":"consumer"`) {
		t.Errorf("string attr missing: %s", out)
	}
	if !strings.Contains(out, `"restarts":2`) {
		t.Errorf("int attr missing: %s", out)
	}
}

func TestSlogHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&SlogHandler{logger: NewTestLogger(&buf)})

	logger.WithGroup("pipeline").Info("batch done", "size", int64(5))
	if out := buf.String(); !strings.Contains(out, `"pipeline.size":5`) {
		t.Errorf("group prefix missing: %s", out)
	}
}
