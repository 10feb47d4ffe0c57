package models

import (
	"fmt"
	"strings"
)

// ValidationError is a row-level failure during ingest. It fails the
// row, never the batch.
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// NotConnectedError indicates there is no usable external credential
// for the org. It blocks committing postings, never diagnostics.
type NotConnectedError struct {
	OrgID    string
	Provider string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("org %s is not connected to %s", e.OrgID, e.Provider)
}

// MappingIncompleteError blocks committing postings while required
// buckets are unmapped. Preview is still allowed.
type MappingIncompleteError struct {
	OrgID   string
	Missing []Bucket
}

func (e *MappingIncompleteError) Error() string {
	keys := make([]string, len(e.Missing))
	for i, b := range e.Missing {
		keys[i] = string(b)
	}
	return fmt.Sprintf("org %s has unmapped required buckets: %s", e.OrgID, strings.Join(keys, ", "))
}

// ExternalApiError wraps a failure response from the ledger provider.
// Only 5xx and timeout classes are retryable.
type ExternalApiError struct {
	Status    int
	Message   string
	Retryable bool
}

func (e *ExternalApiError) Error() string {
	return fmt.Sprintf("ledger provider error (status %d): %s", e.Status, e.Message)
}

// PartialSequenceError reports that the forward half of the reversing
// test posting succeeded but the reverse half failed. The forward id is
// carried so an operator can reverse it manually.
type PartialSequenceError struct {
	ForwardID   string
	ForwardDate string
	Err         error
}

func (e *PartialSequenceError) Error() string {
	return fmt.Sprintf("forward entry %s (dated %s) posted but reverse failed: %v", e.ForwardID, e.ForwardDate, e.Err)
}

func (e *PartialSequenceError) Unwrap() error { return e.Err }

// AlertChannelError is a single channel's delivery failure. Logged and
// collected; it never fails the diagnostics save.
type AlertChannelError struct {
	Channel string
	Err     error
}

func (e *AlertChannelError) Error() string {
	return fmt.Sprintf("alert channel %s failed: %v", e.Channel, e.Err)
}

func (e *AlertChannelError) Unwrap() error { return e.Err }
