package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

const saleColumns = `
	id, org_id, source_label, marketplace, external_order_id, title,
	occurred_at, payout_at, currency, sale_price, shipping_charged,
	shipping_cost, platform_fees, discounts, refunds, chargebacks,
	tax_collected, purchase_price, idempotency_key`

// SaveSale inserts a new sale and its extra costs, returning the new
// row id. Duplicate detection happens in the caller via
// GetSaleByIdempotencyKey; the UNIQUE constraint is the backstop.
func (db *DB) SaveSale(s *models.Sale) (int64, error) {
	query := `
	INSERT INTO sales (
		org_id, source_label, marketplace, external_order_id, title,
		occurred_at, payout_at, currency, sale_price, shipping_charged,
		shipping_cost, platform_fees, discounts, refunds, chargebacks,
		tax_collected, purchase_price, idempotency_key
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var payoutAt interface{}
	if s.PayoutAt != nil {
		payoutAt = s.PayoutAt.UTC().Format(time.RFC3339)
	}

	result, err := db.Exec(
		query,
		s.OrgID,
		s.SourceLabel,
		s.Marketplace,
		s.ExternalOrderID,
		s.Title,
		s.OccurredAt.UTC().Format(time.RFC3339),
		payoutAt,
		s.Currency,
		s.SalePrice,
		s.ShippingCharged,
		s.ShippingCost,
		s.PlatformFees,
		s.Discounts,
		s.Refunds,
		s.Chargebacks,
		s.TaxCollected,
		s.PurchasePrice,
		s.IdempotencyKey,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save sale: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get sale id: %w", err)
	}

	for i := range s.ExtraCosts {
		ec := &s.ExtraCosts[i]
		ec.SaleID = id
		res, err := db.Exec(
			`INSERT INTO extra_costs (sale_id, label, amount) VALUES (?, ?, ?)`,
			id, ec.Label, ec.Amount,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to save extra cost: %w", err)
		}
		if ecID, err := res.LastInsertId(); err == nil {
			ec.ID = ecID
		}
	}

	s.ID = id
	return id, nil
}

// GetSaleByIdempotencyKey returns the sale with the given key for the
// org, or nil when none exists.
func (db *DB) GetSaleByIdempotencyKey(orgID, key string) (*models.Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE org_id = ? AND idempotency_key = ? LIMIT 1`

	s, err := scanSale(db.QueryRow(query, orgID, key))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}

	if err := db.loadExtraCosts(s); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSalesInPeriod returns the org's sales whose occurrence date falls
// inside [start, end], both YYYY-MM-DD inclusive.
func (db *DB) GetSalesInPeriod(orgID, start, end string) ([]*models.Sale, error) {
	query := `SELECT ` + saleColumns + `
	FROM sales
	WHERE org_id = ? AND date(occurred_at) >= date(?) AND date(occurred_at) <= date(?)
	ORDER BY occurred_at ASC`

	rows, err := db.Query(query, orgID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []*models.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sales: %w", err)
	}

	for _, s := range sales {
		if err := db.loadExtraCosts(s); err != nil {
			return nil, err
		}
	}
	return sales, nil
}

// SetSalePayoutAt updates the one mutable field of an imported sale.
func (db *DB) SetSalePayoutAt(saleID int64, payoutAt time.Time) error {
	result, err := db.Exec(
		`UPDATE sales SET payout_at = ? WHERE id = ?`,
		payoutAt.UTC().Format(time.RFC3339), saleID,
	)
	if err != nil {
		return fmt.Errorf("failed to update payout date: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no sale found with id: %d", saleID)
	}
	return nil
}

func (db *DB) loadExtraCosts(s *models.Sale) error {
	rows, err := db.Query(
		`SELECT id, sale_id, label, amount FROM extra_costs WHERE sale_id = ? ORDER BY id ASC`,
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to query extra costs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ec models.ExtraCost
		if err := rows.Scan(&ec.ID, &ec.SaleID, &ec.Label, &ec.Amount); err != nil {
			return fmt.Errorf("failed to scan extra cost: %w", err)
		}
		s.ExtraCosts = append(s.ExtraCosts, ec)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSale(row rowScanner) (*models.Sale, error) {
	s := &models.Sale{}
	var occurredAt string
	var payoutAt sql.NullString

	err := row.Scan(
		&s.ID,
		&s.OrgID,
		&s.SourceLabel,
		&s.Marketplace,
		&s.ExternalOrderID,
		&s.Title,
		&occurredAt,
		&payoutAt,
		&s.Currency,
		&s.SalePrice,
		&s.ShippingCharged,
		&s.ShippingCost,
		&s.PlatformFees,
		&s.Discounts,
		&s.Refunds,
		&s.Chargebacks,
		&s.TaxCollected,
		&s.PurchasePrice,
		&s.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("malformed occurred_at %q: %w", occurredAt, err)
	}
	s.OccurredAt = t

	if payoutAt.Valid && payoutAt.String != "" {
		p, err := time.Parse(time.RFC3339, payoutAt.String)
		if err != nil {
			return nil, fmt.Errorf("malformed payout_at %q: %w", payoutAt.String, err)
		}
		s.PayoutAt = &p
	}

	return s, nil
}
