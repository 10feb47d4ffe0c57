package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

func testSale(orgID, orderID string, occurredAt time.Time) *models.Sale {
	s := &models.Sale{
		OrgID:           orgID,
		SourceLabel:     "csv-import",
		Marketplace:     "ebay",
		ExternalOrderID: orderID,
		Title:           "Vintage Levi's 501",
		OccurredAt:      occurredAt,
		Currency:        "USD",
		SalePrice:       5400,
		ShippingCharged: 1000,
		ShippingCost:    850,
		PlatformFees:    702,
		TaxCollected:    432,
		PurchasePrice:   2000,
	}
	s.IdempotencyKey = s.ComputeIdempotencyKey()
	return s
}

func TestSaveAndGetSale(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	s := testSale("org-1", "ORD-1001", at)
	s.ExtraCosts = []models.ExtraCost{
		{Label: "poly mailer", Amount: 100},
		{Label: "authentication", Amount: 400},
	}

	id, err := db.SaveSale(s)
	assert.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := db.GetSaleByIdempotencyKey("org-1", s.IdempotencyKey)
	assert.NoError(t, err)
	assert.NotNil(t, got)
	assert.Equal(t, "ORD-1001", got.ExternalOrderID)
	assert.Equal(t, int64(5400), got.SalePrice)
	assert.True(t, got.OccurredAt.Equal(at))
	assert.Nil(t, got.PayoutAt)
	assert.Len(t, got.ExtraCosts, 2)
	assert.Equal(t, int64(400), got.ExtraCosts[1].Amount)
}

func TestGetSaleUnknownKeyReturnsNil(t *testing.T) {
	db := newTestDB(t)

	got, err := db.GetSaleByIdempotencyKey("org-1", "no-such-key")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveSaleDuplicateKeyRejected(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	first := testSale("org-1", "ORD-1001", at)
	_, err := db.SaveSale(first)
	assert.NoError(t, err)

	// the UNIQUE constraint is the backstop behind the caller's
	// get-then-insert check
	dup := testSale("org-1", "ORD-1001", at)
	_, err = db.SaveSale(dup)
	assert.Error(t, err)

	// the same key under a different org is a different row
	other := testSale("org-2", "ORD-1001", at)
	_, err = db.SaveSale(other)
	assert.NoError(t, err)
}

func TestGetSalesInPeriod(t *testing.T) {
	db := newTestDB(t)

	dates := []time.Time{
		time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	for i, d := range dates {
		s := testSale("org-1", "ORD-"+string(rune('A'+i)), d)
		_, err := db.SaveSale(s)
		assert.NoError(t, err)
	}

	sales, err := db.GetSalesInPeriod("org-1", "2026-03-01", "2026-03-31")
	assert.NoError(t, err)
	assert.Len(t, sales, 3, "period bounds are inclusive")

	// sorted by occurrence
	assert.Equal(t, "ORD-B", sales[0].ExternalOrderID)
	assert.Equal(t, "ORD-D", sales[2].ExternalOrderID)

	// other orgs never leak in
	none, err := db.GetSalesInPeriod("org-2", "2026-03-01", "2026-03-31")
	assert.NoError(t, err)
	assert.Empty(t, none)
}

func TestSetSalePayoutAt(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	s := testSale("org-1", "ORD-1001", at)
	id, err := db.SaveSale(s)
	assert.NoError(t, err)

	payout := time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, db.SetSalePayoutAt(id, payout))

	got, err := db.GetSaleByIdempotencyKey("org-1", s.IdempotencyKey)
	assert.NoError(t, err)
	assert.NotNil(t, got.PayoutAt)
	assert.True(t, got.PayoutAt.Equal(payout))

	// unknown ids are reported, not silently ignored
	assert.Error(t, db.SetSalePayoutAt(99999, payout))
}
