package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// TransactionKind distinguishes the two ledgers a row can land in.
type TransactionKind string

const (
	KindSale    TransactionKind = "sale"
	KindExpense TransactionKind = "expense"
)

// Sale is an imported sale row. Immutable once imported except PayoutAt.
type Sale struct {
	ID              int64      `json:"id"`
	OrgID           string     `json:"orgId"`
	SourceLabel     string     `json:"sourceLabel"`
	Marketplace     string     `json:"marketplace"`
	ExternalOrderID string     `json:"externalOrderId"`
	Title           string     `json:"title"`
	OccurredAt      time.Time  `json:"occurredAt"`
	PayoutAt        *time.Time `json:"payoutAt,omitempty"`

	Currency        string `json:"currency"`
	SalePrice       int64  `json:"salePrice"`
	ShippingCharged int64  `json:"shippingCharged"`
	ShippingCost    int64  `json:"shippingCost"`
	PlatformFees    int64  `json:"platformFees"`
	Discounts       int64  `json:"discounts"`
	Refunds         int64  `json:"refunds"`
	Chargebacks     int64  `json:"chargebacks"`
	TaxCollected    int64  `json:"taxCollected"`
	PurchasePrice   int64  `json:"purchasePrice"`

	ExtraCosts []ExtraCost `json:"extraCosts,omitempty"`

	IdempotencyKey string `json:"idempotencyKey"`
}

// ExtraCost is an additional cost attached to a sale that contributes to
// its locked cost basis (shipping supplies, authentication fees, ...).
type ExtraCost struct {
	ID     int64  `json:"id"`
	SaleID int64  `json:"saleId"`
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Expense is an imported business expense row. Immutable once imported.
type Expense struct {
	ID              int64     `json:"id"`
	OrgID           string    `json:"orgId"`
	SourceLabel     string    `json:"sourceLabel"`
	Marketplace     string    `json:"marketplace"`
	ExternalOrderID string    `json:"externalOrderId"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	OccurredAt      time.Time `json:"occurredAt"`

	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`

	IdempotencyKey string `json:"idempotencyKey"`
}

// IdempotencyKey derives the content-addressed duplicate-detection key for
// an imported row: a SHA-256 digest over the canonicalized identifying
// fields. Two imports of the same row always produce the same key, so a
// retry resolves to "already present" instead of a second insert.
func IdempotencyKey(sourceLabel, marketplace, externalOrderID string, occurredAt time.Time, amountMinor int64, currency string) string {
	canonical := strings.Join([]string{
		strings.ToLower(strings.TrimSpace(sourceLabel)),
		strings.ToLower(strings.TrimSpace(marketplace)),
		strings.TrimSpace(externalOrderID),
		occurredAt.UTC().Format(time.RFC3339),
		strconv.FormatInt(amountMinor, 10),
		strings.ToUpper(strings.TrimSpace(currency)),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func (s *Sale) ComputeIdempotencyKey() string {
	return IdempotencyKey(s.SourceLabel, s.Marketplace, s.ExternalOrderID, s.OccurredAt, s.SalePrice, s.Currency)
}

func (e *Expense) ComputeIdempotencyKey() string {
	return IdempotencyKey(e.SourceLabel, e.Marketplace, e.ExternalOrderID, e.OccurredAt, e.Amount, e.Currency)
}
