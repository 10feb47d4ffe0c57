package db

import (
	"database/sql"
	"fmt"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// UpsertAccountMapping inserts or replaces the mapping for the
// (org, provider, bucket) tuple. At most one mapping exists per tuple.
func (db *DB) UpsertAccountMapping(am *models.AccountMapping) error {
	query := `
	INSERT INTO account_mappings (org_id, provider, bucket, external_account_id, external_display_name)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(org_id, provider, bucket) DO UPDATE SET
		external_account_id = excluded.external_account_id,
		external_display_name = excluded.external_display_name
	`

	_, err := db.Exec(query, am.OrgID, am.Provider, am.Bucket, am.ExternalAccountID, am.ExternalDisplayName)
	if err != nil {
		return fmt.Errorf("failed to upsert account mapping: %w", err)
	}

	return nil
}

// GetAccountMapping returns the mapping for one bucket, or nil when the
// bucket is unmapped.
func (db *DB) GetAccountMapping(orgID, provider string, bucket models.Bucket) (*models.AccountMapping, error) {
	query := `
	SELECT
		org_id, provider, bucket, external_account_id, external_display_name
	FROM account_mappings
	WHERE org_id = ? AND provider = ? AND bucket = ?
	LIMIT 1
	`

	var am models.AccountMapping
	err := db.QueryRow(query, orgID, provider, bucket).Scan(
		&am.OrgID,
		&am.Provider,
		&am.Bucket,
		&am.ExternalAccountID,
		&am.ExternalDisplayName,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get account mapping: %w", err)
	}

	return &am, nil
}

// GetAccountMappings returns every mapping the org has for the provider.
func (db *DB) GetAccountMappings(orgID, provider string) ([]*models.AccountMapping, error) {
	query := `
	SELECT
		org_id, provider, bucket, external_account_id, external_display_name
	FROM account_mappings
	WHERE org_id = ? AND provider = ?
	ORDER BY bucket ASC
	`

	rows, err := db.Query(query, orgID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to query account mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*models.AccountMapping
	for rows.Next() {
		var am models.AccountMapping
		err := rows.Scan(
			&am.OrgID,
			&am.Provider,
			&am.Bucket,
			&am.ExternalAccountID,
			&am.ExternalDisplayName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account mapping: %w", err)
		}
		mappings = append(mappings, &am)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating account mappings: %w", err)
	}

	return mappings, nil
}
