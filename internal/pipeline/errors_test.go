// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package pipeline

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryableError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewRetryableError("transcode backend unavailable", cause)

	if !IsRetryable(err) {
		t.Error("IsRetryable should match")
	}
	if IsPermanent(err) {
		t.Error("IsPermanent should not match")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should unwrap")
	}
	if err.Error() != "transcode backend unavailable: connection reset" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestRetryableError_NoCause(t *testing.T) {
	err := NewRetryableError("worker pool exhausted", nil)
	if err.Error() != "worker pool exhausted" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable should match")
	}
}

func TestPermanentError(t *testing.T) {
	cause := errors.New("unknown codec")
	err := NewPermanentError("unsupported media format", cause)

	if !IsPermanent(err) {
		t.Error("IsPermanent should match")
	}
	if IsRetryable(err) {
		t.Error("IsRetryable should not match")
	}
	if !errors.Is(err, cause) {
		t.Error("cause should unwrap")
	}
}

func TestTaxonomy_Wrapped(t *testing.T) {
	inner := NewRetryableError("queue full", nil)
	wrapped := fmt.Errorf("step metadata: %w", inner)

	if !IsRetryable(wrapped) {
		t.Error("retryable should survive wrapping")
	}

	pinner := NewPermanentError("corrupt header", nil)
	pwrapped := fmt.Errorf("step validate: %w", pinner)
	if !IsPermanent(pwrapped) {
		t.Error("permanent should survive wrapping")
	}
}

func TestTaxonomy_PlainError(t *testing.T) {
	err := errors.New("something else")
	if IsRetryable(err) || IsPermanent(err) {
		t.Error("plain errors belong to neither class")
	}
}

func TestBatchReport_Counts(t *testing.T) {
	report := BatchReport{Outcomes: []Outcome{
		{EventID: "a", Action: ActionAck, Reason: ReasonApplied},
		{EventID: "b", Action: ActionAck, Reason: ReasonDuplicate},
		{EventID: "c", Action: ActionRelease, Reason: ReasonRetryable},
	}}
	if report.Acked() != 2 {
		t.Errorf("Acked = %d, want 2", report.Acked())
	}
	if report.Released() != 1 {
		t.Errorf("Released = %d, want 1", report.Released())
	}
}
