package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// AppendAlertEvent writes one immutable audit row. There is no update
// or delete path for alert_events.
func (db *DB) AppendAlertEvent(e *models.AlertEvent) error {
	recipients, err := json.Marshal(e.Recipients)
	if err != nil {
		return fmt.Errorf("failed to encode recipients: %w", err)
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO alert_events (id, org_id, prev_status, next_status, kind, recipients, reason, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.Exec(
		query,
		e.ID,
		e.OrgID,
		e.PrevStatus,
		e.NextStatus,
		e.Kind,
		string(recipients),
		e.Reason,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to append alert event: %w", err)
	}
	return nil
}

// GetLatestAlertEvent returns the org's most recent alert event, or nil.
// The dispatcher uses it as the at-most-one-alert-per-minute floor.
func (db *DB) GetLatestAlertEvent(orgID string) (*models.AlertEvent, error) {
	query := `
	SELECT id, org_id, prev_status, next_status, kind, recipients, reason, created_at
	FROM alert_events
	WHERE org_id = ?
	ORDER BY created_at DESC
	LIMIT 1
	`

	e, err := scanAlertEvent(db.QueryRow(query, orgID))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get latest alert event: %w", err)
	}
	return e, nil
}

// GetAlertEvents returns the org's full audit trail, newest first.
func (db *DB) GetAlertEvents(orgID string) ([]*models.AlertEvent, error) {
	query := `
	SELECT id, org_id, prev_status, next_status, kind, recipients, reason, created_at
	FROM alert_events
	WHERE org_id = ?
	ORDER BY created_at DESC
	`

	rows, err := db.Query(query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		e, err := scanAlertEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alert events: %w", err)
	}
	return events, nil
}

func scanAlertEvent(row rowScanner) (*models.AlertEvent, error) {
	e := &models.AlertEvent{}
	var recipients, createdAt string

	err := row.Scan(
		&e.ID,
		&e.OrgID,
		&e.PrevStatus,
		&e.NextStatus,
		&e.Kind,
		&recipients,
		&e.Reason,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if recipients != "" {
		if err := json.Unmarshal([]byte(recipients), &e.Recipients); err != nil {
			return nil, fmt.Errorf("malformed recipients: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		e.CreatedAt = t
	}
	return e, nil
}
