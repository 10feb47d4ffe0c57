package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

const expenseColumns = `
	id, org_id, source_label, marketplace, external_order_id,
	description, category, occurred_at, currency, amount, idempotency_key`

// SaveExpense inserts a new expense, returning the new row id.
func (db *DB) SaveExpense(e *models.Expense) (int64, error) {
	query := `
	INSERT INTO expenses (
		org_id, source_label, marketplace, external_order_id,
		description, category, occurred_at, currency, amount, idempotency_key
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := db.Exec(
		query,
		e.OrgID,
		e.SourceLabel,
		e.Marketplace,
		e.ExternalOrderID,
		e.Description,
		e.Category,
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.Currency,
		e.Amount,
		e.IdempotencyKey,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save expense: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get expense id: %w", err)
	}
	e.ID = id
	return id, nil
}

// GetExpenseByIdempotencyKey returns the expense with the given key for
// the org, or nil when none exists.
func (db *DB) GetExpenseByIdempotencyKey(orgID, key string) (*models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE org_id = ? AND idempotency_key = ? LIMIT 1`

	e, err := scanExpense(db.QueryRow(query, orgID, key))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}
	return e, nil
}

// GetExpensesInPeriod returns the org's expenses within [start, end],
// both YYYY-MM-DD inclusive.
func (db *DB) GetExpensesInPeriod(orgID, start, end string) ([]*models.Expense, error) {
	query := `SELECT ` + expenseColumns + `
	FROM expenses
	WHERE org_id = ? AND date(occurred_at) >= date(?) AND date(occurred_at) <= date(?)
	ORDER BY occurred_at ASC`

	rows, err := db.Query(query, orgID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expenses: %w", err)
	}
	return expenses, nil
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	e := &models.Expense{}
	var occurredAt string

	err := row.Scan(
		&e.ID,
		&e.OrgID,
		&e.SourceLabel,
		&e.Marketplace,
		&e.ExternalOrderID,
		&e.Description,
		&e.Category,
		&occurredAt,
		&e.Currency,
		&e.Amount,
		&e.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("malformed occurred_at %q: %w", occurredAt, err)
	}
	e.OccurredAt = t
	return e, nil
}
