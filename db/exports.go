package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// CreateJournalExport persists a new posting-attempt row. The row is
// written before the external call is made so a crash mid-call leaves
// forensic evidence.
func (db *DB) CreateJournalExport(e *models.JournalExport) error {
	query := `
	INSERT INTO journal_exports (
		id, org_id, provider, period_start, period_end, status,
		preview_payload, sent_payload, external_id, error_reason,
		created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	_, err := db.Exec(
		query,
		e.ID,
		e.OrgID,
		e.Provider,
		e.PeriodStart,
		e.PeriodEnd,
		e.Status,
		e.PreviewPayload,
		e.SentPayload,
		e.ExternalID,
		e.ErrorReason,
		e.CreatedAt.Format(time.RFC3339),
		e.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create journal export: %w", err)
	}
	return nil
}

// UpdateJournalExport records the outcome of the external call. A row
// is terminal once its status leaves preview.
func (db *DB) UpdateJournalExport(e *models.JournalExport) error {
	query := `
	UPDATE journal_exports
	SET status = ?, sent_payload = ?, external_id = ?, error_reason = ?, updated_at = ?
	WHERE id = ?
	`

	e.UpdatedAt = time.Now().UTC()
	result, err := db.Exec(
		query,
		e.Status,
		e.SentPayload,
		e.ExternalID,
		e.ErrorReason,
		e.UpdatedAt.Format(time.RFC3339),
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update journal export: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no journal export found with id: %s", e.ID)
	}
	return nil
}

// GetJournalExport returns the export row with the given id, or nil.
func (db *DB) GetJournalExport(id string) (*models.JournalExport, error) {
	query := `
	SELECT
		id, org_id, provider, period_start, period_end, status,
		preview_payload, sent_payload, external_id, error_reason,
		created_at, updated_at
	FROM journal_exports
	WHERE id = ?
	LIMIT 1
	`

	var e models.JournalExport
	var createdAt, updatedAt string
	err := db.QueryRow(query, id).Scan(
		&e.ID,
		&e.OrgID,
		&e.Provider,
		&e.PeriodStart,
		&e.PeriodEnd,
		&e.Status,
		&e.PreviewPayload,
		&e.SentPayload,
		&e.ExternalID,
		&e.ErrorReason,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get journal export: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		e.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		e.UpdatedAt = t
	}
	return &e, nil
}
