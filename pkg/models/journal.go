package models

import "time"

// ExportStatus is the lifecycle state of a posting attempt. A row is
// created as preview before the network call and is terminal once it
// leaves preview.
type ExportStatus string

const (
	ExportStatusPreview   ExportStatus = "preview"
	ExportStatusCommitted ExportStatus = "committed"
	ExportStatusError     ExportStatus = "error"
)

// JournalLine is one debit or credit line of a balanced journal entry.
type JournalLine struct {
	Bucket      Bucket `json:"bucket"`
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName,omitempty"`
	Description string `json:"description,omitempty"`
	// Exactly one of Debit/Credit is non-zero, in minor units.
	Debit  int64 `json:"debit,omitempty"`
	Credit int64 `json:"credit,omitempty"`
}

// JournalEntry is a balanced posting payload: sum of debits equals sum
// of credits.
type JournalEntry struct {
	Date     string        `json:"date"`
	Currency string        `json:"currency"`
	Memo     string        `json:"memo,omitempty"`
	Lines    []JournalLine `json:"lines"`
}

// TotalDebits sums the debit side in minor units.
func (e *JournalEntry) TotalDebits() int64 {
	var total int64
	for _, l := range e.Lines {
		total += l.Debit
	}
	return total
}

// TotalCredits sums the credit side in minor units.
func (e *JournalEntry) TotalCredits() int64 {
	var total int64
	for _, l := range e.Lines {
		total += l.Credit
	}
	return total
}

// Balanced reports whether debits equal credits.
func (e *JournalEntry) Balanced() bool {
	return e.TotalDebits() == e.TotalCredits()
}

// JournalExport records one posting attempt against the external ledger.
// The row is written before the network call so a crash mid-call leaves
// evidence instead of silence.
type JournalExport struct {
	ID             string       `json:"id"`
	OrgID          string       `json:"orgId"`
	Provider       string       `json:"provider"`
	PeriodStart    string       `json:"periodStart"`
	PeriodEnd      string       `json:"periodEnd"`
	Status         ExportStatus `json:"status"`
	PreviewPayload string       `json:"previewPayload"`
	SentPayload    string       `json:"sentPayload,omitempty"`
	ExternalID     string       `json:"externalId,omitempty"`
	ErrorReason    string       `json:"errorReason,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// TestPostingResult is the outcome of the auto-reversing connectivity
// test. ReverseID is empty when the reverse call failed; the forward id
// is always present once the forward call succeeded.
type TestPostingResult struct {
	ForwardID   string `json:"forwardId"`
	ReverseID   string `json:"reverseId,omitempty"`
	Date        string `json:"date"`
	ReverseDate string `json:"reverseDate"`
}

// VerificationResult is the per-id outcome of a verification probe.
// Found=false is an expected state, not an error.
type VerificationResult struct {
	ID      string `json:"id"`
	Found   bool   `json:"found"`
	TxnDate string `json:"txnDate,omitempty"`
}
