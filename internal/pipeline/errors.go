// Conveyor - Media Ingest Lifecycle Pipeline
// Copyright 2026 Conveyor Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/conveyor-media/conveyor

package pipeline

import "errors"

// RetryableError marks an infra-level failure worth another delivery attempt
// (broker hiccup, store unreachable, step dependency down). The pipeline
// releases the delivery so the queue redelivers it.
type RetryableError struct {
	Message string
	Cause   error
}

// NewRetryableError creates a retryable error.
func NewRetryableError(message string, cause error) *RetryableError {
	return &RetryableError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *RetryableError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *RetryableError) Unwrap() error {
	return e.Cause
}

// PermanentError marks a failure that redelivery can never fix (malformed
// payload, policy violation). The pipeline acks the delivery and records the
// outcome instead of retrying.
type PermanentError struct {
	Message string
	Cause   error
}

// NewPermanentError creates a permanent error.
func NewPermanentError(message string, cause error) *PermanentError {
	return &PermanentError{Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *PermanentError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *PermanentError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is marked retryable anywhere in its chain.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsPermanent reports whether err is marked permanent anywhere in its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
