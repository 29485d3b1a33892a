// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package media

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestStorageEvent_Validate(t *testing.T) {
	valid := func() *StorageEvent {
		return &StorageEvent{
			EventID:    "evt-1",
			MediaID:    "m1",
			ChangeType: ChangeCreated,
			StorageKey: "uploads/m1.mp4",
			Timestamp:  time.Now().UTC(),
		}
	}

	t.Run("valid created event", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	})

	t.Run("removed event needs no storage key", func(t *testing.T) {
		ev := valid()
		ev.ChangeType = ChangeRemoved
		ev.StorageKey = ""
		if err := ev.Validate(); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	})

	t.Run("missing event id", func(t *testing.T) {
		ev := valid()
		ev.EventID = ""
		if err := ev.Validate(); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("missing media id", func(t *testing.T) {
		ev := valid()
		ev.MediaID = ""
		if err := ev.Validate(); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("unknown change type", func(t *testing.T) {
		ev := valid()
		ev.ChangeType = "renamed"
		if err := ev.Validate(); err == nil {
			t.Error("Expected validation error")
		}
	})

	t.Run("created without storage key", func(t *testing.T) {
		ev := valid()
		ev.StorageKey = ""
		if err := ev.Validate(); err == nil {
			t.Error("Expected validation error")
		}
	})
}

func TestParseStorageEvent(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ev := NewStorageEvent("m1", ChangeCreated)
		ev.StorageKey = "uploads/m1.mp4"
		ev.SizeBytes = 1024
		ev.ContentType = "video/mp4"

		data, err := ev.Marshal()
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}

		got, err := ParseStorageEvent(data)
		if err != nil {
			t.Fatalf("ParseStorageEvent: %v", err)
		}
		if got.EventID != ev.EventID || got.MediaID != "m1" || got.ChangeType != ChangeCreated {
			t.Errorf("Round trip mismatch: %+v", got)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := ParseStorageEvent([]byte("{not json")); err == nil {
			t.Error("Expected parse error")
		}
	})

	t.Run("valid json failing validation", func(t *testing.T) {
		data, _ := json.Marshal(map[string]string{"event_id": "evt-1"})
		if _, err := ParseStorageEvent(data); err == nil {
			t.Error("Expected validation error")
		}
	})
}

func TestStorageEvent_Topic(t *testing.T) {
	ev := NewStorageEvent("m1", ChangeRemoved)
	if got := ev.Topic(); got != "media.events.removed" {
		t.Errorf("Topic = %q", got)
	}
}

func TestMediaRecord_Clone(t *testing.T) {
	rec := &MediaRecord{
		MediaID:  "m1",
		State:    StateProcessing,
		Metadata: map[string]string{"codec": "h264"},
		Version:  3,
	}
	clone := rec.Clone()
	clone.Metadata["codec"] = "av1"
	clone.Version = 4

	if rec.Metadata["codec"] != "h264" {
		t.Error("Clone shares metadata map with original")
	}
	if rec.Version != 3 {
		t.Error("Clone mutated original version")
	}
}
