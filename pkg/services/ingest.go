package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/models"
)

// dateLayouts are the accepted occurrence-date formats, tried in order;
// the first successful parse wins.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"02-Jan-2006",
}

// headerAliases maps the header names marketplace exports actually use
// onto the canonical schema.
var headerAliases = map[string]string{
	"order id":       "external_order_id",
	"order number":   "external_order_id",
	"order_id":       "external_order_id",
	"transaction id": "external_order_id",
	"item":           "title",
	"item title":     "title",
	"listing title":  "title",
	"description":    "description",
	"date":           "date",
	"sale date":      "date",
	"order date":     "date",
	"sold date":      "date",
	"price":          "sale_price",
	"sale price":     "sale_price",
	"sold price":     "sale_price",
	"amount":         "amount",
	"total":          "amount",
	"shipping":       "shipping_charged",
	"buyer shipping": "shipping_charged",
	"shipping paid":  "shipping_charged",
	"shipping cost":  "shipping_cost",
	"postage":        "shipping_cost",
	"label cost":     "shipping_cost",
	"fees":           "platform_fees",
	"seller fees":    "platform_fees",
	"marketplace":    "marketplace",
	"platform":       "marketplace",
	"source":         "marketplace",
	"discount":       "discounts",
	"refund":         "refunds",
	"chargeback":     "chargebacks",
	"tax":            "tax_collected",
	"sales tax":      "tax_collected",
	"cost":           "purchase_price",
	"purchase price": "purchase_price",
	"cost of goods":  "purchase_price",
	"currency":       "currency",
	"category":       "category",
	"kind":           "kind",
	"type":           "kind",
}

// IngestRow is one loosely-typed row from a marketplace export.
type IngestRow map[string]string

// RowError is a per-row ingest failure; it never fails the batch.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// IngestResult reports the outcome of one ingest batch. Every row is
// independently inserted, skipped as a duplicate, or listed in Errors.
type IngestResult struct {
	InsertedIDs []int64    `json:"insertedIds"`
	Duplicates  int        `json:"duplicates"`
	Errors      []RowError `json:"errors"`
}

func (r *IngestResult) InsertedCount() int { return len(r.InsertedIDs) }

// Ingester imports externally-sourced transaction rows into the
// internal ledger, idempotently.
type Ingester struct {
	store           db.Store
	defaultCurrency string
}

func NewIngester(store db.Store, defaultCurrency string) *Ingester {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &Ingester{store: store, defaultCurrency: defaultCurrency}
}

// Ingest processes every row in order. A malformed row records a
// RowError; a row whose idempotency key already exists records a
// duplicate skip. Neither aborts the batch.
func (i *Ingester) Ingest(orgID, sourceLabel string, rows []IngestRow) (*IngestResult, error) {
	result := &IngestResult{}

	for n, raw := range rows {
		row := normalizeRow(raw)

		kind := models.KindSale
		if k := row["kind"]; strings.EqualFold(k, "expense") {
			kind = models.KindExpense
		}

		var err error
		if kind == models.KindExpense {
			err = i.ingestExpense(orgID, sourceLabel, n, row, result)
		} else {
			err = i.ingestSale(orgID, sourceLabel, n, row, result)
		}
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: n, Reason: err.Error()})
		}
	}

	log.Info().
		Str("org", orgID).
		Str("source", sourceLabel).
		Int("inserted", len(result.InsertedIDs)).
		Int("duplicates", result.Duplicates).
		Int("errors", len(result.Errors)).
		Msg("ingest batch processed")

	return result, nil
}

func (i *Ingester) ingestSale(orgID, sourceLabel string, n int, row map[string]string, result *IngestResult) error {
	currency := i.currencyFor(row)

	occurredAt, err := parseRowDate(row["date"])
	if err != nil {
		return err
	}

	salePrice, err := requiredMoney(row, "sale_price", currency)
	if err != nil {
		return err
	}

	s := &models.Sale{
		OrgID:           orgID,
		SourceLabel:     sourceLabel,
		Marketplace:     row["marketplace"],
		ExternalOrderID: row["external_order_id"],
		Title:           row["title"],
		OccurredAt:      occurredAt,
		Currency:        currency,
		SalePrice:       salePrice,
	}

	if s.ShippingCharged, err = optionalMoney(row, "shipping_charged", currency); err != nil {
		return err
	}
	if s.ShippingCost, err = optionalMoney(row, "shipping_cost", currency); err != nil {
		return err
	}
	if s.PlatformFees, err = optionalMoney(row, "platform_fees", currency); err != nil {
		return err
	}
	if s.Discounts, err = optionalMoney(row, "discounts", currency); err != nil {
		return err
	}
	if s.Refunds, err = optionalMoney(row, "refunds", currency); err != nil {
		return err
	}
	if s.Chargebacks, err = optionalMoney(row, "chargebacks", currency); err != nil {
		return err
	}
	if s.TaxCollected, err = optionalMoney(row, "tax_collected", currency); err != nil {
		return err
	}
	if s.PurchasePrice, err = optionalMoney(row, "purchase_price", currency); err != nil {
		return err
	}

	s.IdempotencyKey = s.ComputeIdempotencyKey()

	existing, err := i.store.GetSaleByIdempotencyKey(orgID, s.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to check for existing sale: %w", err)
	}
	if existing != nil {
		log.Debug().Int("row", n).Str("key", s.IdempotencyKey).Msg("duplicate sale, skipped")
		result.Duplicates++
		return nil
	}

	id, err := i.store.SaveSale(s)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	result.InsertedIDs = append(result.InsertedIDs, id)
	return nil
}

func (i *Ingester) ingestExpense(orgID, sourceLabel string, n int, row map[string]string, result *IngestResult) error {
	currency := i.currencyFor(row)

	occurredAt, err := parseRowDate(row["date"])
	if err != nil {
		return err
	}

	amount, err := requiredMoney(row, "amount", currency)
	if err != nil {
		return err
	}

	e := &models.Expense{
		OrgID:           orgID,
		SourceLabel:     sourceLabel,
		Marketplace:     row["marketplace"],
		ExternalOrderID: row["external_order_id"],
		Description:     row["description"],
		Category:        row["category"],
		OccurredAt:      occurredAt,
		Currency:        currency,
		Amount:          amount,
	}
	e.IdempotencyKey = e.ComputeIdempotencyKey()

	existing, err := i.store.GetExpenseByIdempotencyKey(orgID, e.IdempotencyKey)
	if err != nil {
		return fmt.Errorf("failed to check for existing expense: %w", err)
	}
	if existing != nil {
		log.Debug().Int("row", n).Str("key", e.IdempotencyKey).Msg("duplicate expense, skipped")
		result.Duplicates++
		return nil
	}

	id, err := i.store.SaveExpense(e)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	result.InsertedIDs = append(result.InsertedIDs, id)
	return nil
}

func (i *Ingester) currencyFor(row map[string]string) string {
	if c := strings.ToUpper(strings.TrimSpace(row["currency"])); c != "" {
		return c
	}
	return i.defaultCurrency
}

// normalizeRow lower-cases and alias-resolves header names; unknown
// headers are carried through lower-cased so aliases can be extended
// without dropping data.
func normalizeRow(raw IngestRow) map[string]string {
	row := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := headerAliases[key]; ok {
			key = canonical
		}
		row[key] = strings.TrimSpace(v)
	}
	return row
}

func parseRowDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

func requiredMoney(row map[string]string, field, currency string) (int64, error) {
	value := row[field]
	if value == "" {
		return 0, fmt.Errorf("missing %s", field)
	}
	v, err := models.ToMinorUnits(value, currency)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %v", field, err)
	}
	return v, nil
}

func optionalMoney(row map[string]string, field, currency string) (int64, error) {
	value := row[field]
	if value == "" {
		return 0, nil
	}
	v, err := models.ToMinorUnits(value, currency)
	if err != nil {
		return 0, fmt.Errorf("bad %s: %v", field, err)
	}
	return v, nil
}
