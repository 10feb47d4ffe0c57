package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/ledger"
	"github.com/resoldhq/ledgermirror/pkg/models"
	"github.com/resoldhq/ledgermirror/pkg/profit"
)

// JournalSyncer builds balanced journal entries from internal
// transactions and posts them to the external ledger.
type JournalSyncer struct {
	store    db.Store
	client   ledger.Client
	provider string
	currency string

	// now is swappable so the reversing-test dates are testable.
	now func() time.Time
}

func NewJournalSyncer(store db.Store, client ledger.Client, provider, currency string) *JournalSyncer {
	if currency == "" {
		currency = "USD"
	}
	return &JournalSyncer{
		store:    store,
		client:   client,
		provider: provider,
		currency: currency,
		now:      time.Now,
	}
}

// Period is an inclusive [Start, End] date window, both YYYY-MM-DD.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// BuildEntry aggregates the org's sales and expenses in the period into
// one balanced entry. Unmapped buckets appear with an empty account id
// so previews work before configuration is complete; Commit refuses
// them.
func (j *JournalSyncer) BuildEntry(ctx context.Context, orgID string, period Period) (*models.JournalEntry, error) {
	sales, err := j.store.GetSalesInPeriod(orgID, period.Start, period.End)
	if err != nil {
		return nil, err
	}
	expenses, err := j.store.GetExpensesInPeriod(orgID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	mappings, err := j.store.GetAccountMappings(orgID, j.provider)
	if err != nil {
		return nil, err
	}
	byBucket := lo.SliceToMap(mappings, func(m *models.AccountMapping) (models.Bucket, *models.AccountMapping) {
		return m.Bucket, m
	})

	// credit totals
	var revenue, shippingIncome, tax int64
	// debit totals
	var fees, shippingCost, cogs, expenseTotal int64

	for _, s := range sales {
		revenue += s.SalePrice
		shippingIncome += s.ShippingCharged
		tax += s.TaxCollected
		// discounts, refunds and chargebacks are cost-like deductions
		fees += s.PlatformFees + s.Discounts + s.Refunds + s.Chargebacks
		shippingCost += s.ShippingCost
		cogs += profit.LockedCost(s.PurchasePrice, s.ExtraCosts)
	}
	for _, e := range expenses {
		expenseTotal += e.Amount
	}

	// orgs without a shipping_income mapping fold shipping into revenue
	if _, ok := byBucket[models.BucketShippingIncome]; !ok {
		revenue += shippingIncome
		shippingIncome = 0
	}
	// same for a dedicated operating-expenses account
	if _, ok := byBucket[models.BucketExpenses]; !ok {
		fees += expenseTotal
		expenseTotal = 0
	}

	entry := &models.JournalEntry{
		Date:     period.End,
		Currency: j.currency,
		Memo:     fmt.Sprintf("ledgermirror sync %s..%s", period.Start, period.End),
	}

	credit := func(bucket models.Bucket, amount int64, desc string) {
		if amount == 0 {
			return
		}
		entry.Lines = append(entry.Lines, journalLine(byBucket, bucket, 0, amount, desc))
	}
	debit := func(bucket models.Bucket, amount int64, desc string) {
		if amount == 0 {
			return
		}
		entry.Lines = append(entry.Lines, journalLine(byBucket, bucket, amount, 0, desc))
	}

	credit(models.BucketRevenue, revenue, "sales revenue")
	credit(models.BucketShippingIncome, shippingIncome, "shipping charged to buyers")
	credit(models.BucketTaxLiability, tax, "sales tax collected")
	debit(models.BucketPlatformFees, fees, "platform fees and deductions")
	debit(models.BucketShippingCost, shippingCost, "outbound shipping")
	debit(models.BucketCOGS, cogs, "cost of goods sold")
	debit(models.BucketExpenses, expenseTotal, "operating expenses")

	// clearing carries the balancing amount (expected payout)
	if diff := entry.TotalCredits() - entry.TotalDebits(); diff > 0 {
		debit(models.BucketClearing, diff, "marketplace clearing")
	} else if diff < 0 {
		credit(models.BucketClearing, -diff, "marketplace clearing")
	}

	return entry, nil
}

func journalLine(byBucket map[models.Bucket]*models.AccountMapping, bucket models.Bucket, debit, credit int64, desc string) models.JournalLine {
	line := models.JournalLine{
		Bucket:      bucket,
		Debit:       debit,
		Credit:      credit,
		Description: desc,
	}
	if m, ok := byBucket[bucket]; ok {
		line.AccountID = m.ExternalAccountID
		line.AccountName = m.ExternalDisplayName
	}
	return line
}

// Preview builds the entry and records a preview export row without
// touching the network.
func (j *JournalSyncer) Preview(ctx context.Context, orgID string, period Period) (*models.JournalEntry, *models.JournalExport, error) {
	entry, err := j.BuildEntry(ctx, orgID, period)
	if err != nil {
		return nil, nil, err
	}

	export, err := j.newExport(orgID, period, entry)
	if err != nil {
		return nil, nil, err
	}
	return entry, export, nil
}

// Commit posts the period's entry to the external ledger. The export
// row is persisted before the call; its status records the outcome.
func (j *JournalSyncer) Commit(ctx context.Context, orgID string, period Period) (*models.JournalExport, error) {
	status, err := j.client.ConnectionStatus(ctx)
	if err != nil {
		return nil, err
	}
	if !status.Connected {
		return nil, &models.NotConnectedError{OrgID: orgID, Provider: j.provider}
	}

	mappings, err := j.store.GetAccountMappings(orgID, j.provider)
	if err != nil {
		return nil, err
	}
	if missing := models.MissingBuckets(mappings); len(missing) > 0 {
		return nil, &models.MappingIncompleteError{OrgID: orgID, Missing: missing}
	}

	entry, err := j.BuildEntry(ctx, orgID, period)
	if err != nil {
		return nil, err
	}

	export, err := j.newExport(orgID, period, entry)
	if err != nil {
		return nil, err
	}

	sent, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}
	export.SentPayload = string(sent)

	externalID, postErr := j.client.PostJournalEntry(ctx, entry)
	if postErr != nil {
		export.Status = models.ExportStatusError
		export.ErrorReason = postErr.Error()
		if err := j.store.UpdateJournalExport(export); err != nil {
			log.Error().Err(err).Str("export", export.ID).Msg("failed to record export failure")
		}
		return export, postErr
	}

	export.Status = models.ExportStatusCommitted
	export.ExternalID = externalID
	if err := j.store.UpdateJournalExport(export); err != nil {
		return export, fmt.Errorf("entry %s posted but export update failed: %w", externalID, err)
	}

	log.Info().Str("org", orgID).Str("external_id", externalID).Msg("journal entry committed")
	return export, nil
}

func (j *JournalSyncer) newExport(orgID string, period Period, entry *models.JournalEntry) (*models.JournalExport, error) {
	preview, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entry: %w", err)
	}

	export := &models.JournalExport{
		ID:             uuid.NewString(),
		OrgID:          orgID,
		Provider:       j.provider,
		PeriodStart:    period.Start,
		PeriodEnd:      period.End,
		Status:         models.ExportStatusPreview,
		PreviewPayload: string(preview),
	}
	if err := j.store.CreateJournalExport(export); err != nil {
		return nil, err
	}
	return export, nil
}

// RunTestPosting posts a one-cent forward entry dated today and a
// reversing entry dated the same or the next calendar day. The two
// calls are not atomic: when the reverse call fails, the forward id is
// still returned inside a PartialSequenceError so an operator can
// reverse it manually.
func (j *JournalSyncer) RunTestPosting(ctx context.Context, orgID string, sameDayReverse bool, note string) (*models.TestPostingResult, error) {
	revenueMapping, err := j.store.GetAccountMapping(orgID, j.provider, models.BucketRevenue)
	if err != nil {
		return nil, err
	}
	clearingMapping, err := j.store.GetAccountMapping(orgID, j.provider, models.BucketClearing)
	if err != nil {
		return nil, err
	}
	var missing []models.Bucket
	if revenueMapping == nil {
		missing = append(missing, models.BucketRevenue)
	}
	if clearingMapping == nil {
		missing = append(missing, models.BucketClearing)
	}
	if len(missing) > 0 {
		return nil, &models.MappingIncompleteError{OrgID: orgID, Missing: missing}
	}

	today := j.now().UTC()
	date := today.Format(time.DateOnly)
	reverseDate := date
	if !sameDayReverse {
		reverseDate = today.AddDate(0, 0, 1).Format(time.DateOnly)
	}

	if note == "" {
		note = "ledgermirror connectivity test"
	}

	forward := &models.JournalEntry{
		Date:     date,
		Currency: j.currency,
		Memo:     note,
		Lines: []models.JournalLine{
			{Bucket: models.BucketClearing, AccountID: clearingMapping.ExternalAccountID, Debit: 1, Description: note},
			{Bucket: models.BucketRevenue, AccountID: revenueMapping.ExternalAccountID, Credit: 1, Description: note},
		},
	}

	forwardID, err := j.client.PostJournalEntry(ctx, forward)
	if err != nil {
		return nil, err
	}

	reverse := &models.JournalEntry{
		Date:     reverseDate,
		Currency: j.currency,
		Memo:     note + " (reversal)",
		Lines: []models.JournalLine{
			{Bucket: models.BucketRevenue, AccountID: revenueMapping.ExternalAccountID, Debit: 1, Description: note},
			{Bucket: models.BucketClearing, AccountID: clearingMapping.ExternalAccountID, Credit: 1, Description: note},
		},
	}

	result := &models.TestPostingResult{
		ForwardID:   forwardID,
		Date:        date,
		ReverseDate: reverseDate,
	}

	reverseID, err := j.client.PostJournalEntry(ctx, reverse)
	if err != nil {
		log.Error().Err(err).Str("forward_id", forwardID).Msg("test reversal failed, forward entry left in ledger")
		return result, &models.PartialSequenceError{ForwardID: forwardID, ForwardDate: date, Err: err}
	}

	result.ReverseID = reverseID
	return result, nil
}
