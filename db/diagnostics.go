package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// UpsertDiagnostics overwrites the single live snapshot row for the
// org. Evaluations that are not asked to persist never reach here.
func (db *DB) UpsertDiagnostics(s *models.DiagnosticsSnapshot) error {
	missing, err := json.Marshal(s.Missing)
	if err != nil {
		return fmt.Errorf("failed to encode missing buckets: %w", err)
	}
	warnings, err := json.Marshal(s.Warnings)
	if err != nil {
		return fmt.Errorf("failed to encode warnings: %w", err)
	}

	var lastVerifiedAt interface{}
	if s.LastVerifiedAt != nil {
		lastVerifiedAt = s.LastVerifiedAt.UTC().Format(time.RFC3339)
	}

	query := `
	INSERT INTO diagnostics_status (
		org_id, provider, overall, connected, expires_in_sec,
		mappings_complete, warnings_count, missing, warnings,
		last_test_forward_id, last_test_reverse_id, last_verified_at,
		evaluated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(org_id) DO UPDATE SET
		provider = excluded.provider,
		overall = excluded.overall,
		connected = excluded.connected,
		expires_in_sec = excluded.expires_in_sec,
		mappings_complete = excluded.mappings_complete,
		warnings_count = excluded.warnings_count,
		missing = excluded.missing,
		warnings = excluded.warnings,
		last_test_forward_id = excluded.last_test_forward_id,
		last_test_reverse_id = excluded.last_test_reverse_id,
		last_verified_at = excluded.last_verified_at,
		evaluated_at = excluded.evaluated_at
	`

	_, err = db.Exec(
		query,
		s.OrgID,
		s.Provider,
		s.Overall,
		s.Connected,
		s.ExpiresInSec,
		s.MappingsComplete,
		s.WarningsCount,
		string(missing),
		string(warnings),
		s.LastTestForwardID,
		s.LastTestReverseID,
		lastVerifiedAt,
		s.EvaluatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert diagnostics: %w", err)
	}
	return nil
}

// GetDiagnostics returns the org's persisted snapshot, or nil when no
// evaluation has been saved yet.
func (db *DB) GetDiagnostics(orgID string) (*models.DiagnosticsSnapshot, error) {
	query := `
	SELECT
		org_id, provider, overall, connected, expires_in_sec,
		mappings_complete, warnings_count, missing, warnings,
		last_test_forward_id, last_test_reverse_id, last_verified_at,
		evaluated_at
	FROM diagnostics_status
	WHERE org_id = ?
	LIMIT 1
	`

	var s models.DiagnosticsSnapshot
	var missing, warnings string
	var lastVerifiedAt sql.NullString
	var evaluatedAt string

	err := db.QueryRow(query, orgID).Scan(
		&s.OrgID,
		&s.Provider,
		&s.Overall,
		&s.Connected,
		&s.ExpiresInSec,
		&s.MappingsComplete,
		&s.WarningsCount,
		&missing,
		&warnings,
		&s.LastTestForwardID,
		&s.LastTestReverseID,
		&lastVerifiedAt,
		&evaluatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get diagnostics: %w", err)
	}

	if missing != "" {
		if err := json.Unmarshal([]byte(missing), &s.Missing); err != nil {
			return nil, fmt.Errorf("malformed missing buckets: %w", err)
		}
	}
	if warnings != "" {
		if err := json.Unmarshal([]byte(warnings), &s.Warnings); err != nil {
			return nil, fmt.Errorf("malformed warnings: %w", err)
		}
	}
	if lastVerifiedAt.Valid && lastVerifiedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, lastVerifiedAt.String); err == nil {
			s.LastVerifiedAt = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, evaluatedAt); err == nil {
		s.EvaluatedAt = t
	}

	return &s, nil
}
