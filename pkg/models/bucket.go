package models

// Bucket is a logical accounting category that must be mapped to a real
// external ledger account before postings can occur.
type Bucket string

const (
	BucketRevenue        Bucket = "revenue"
	BucketShippingIncome Bucket = "shipping_income"
	BucketCOGS           Bucket = "cogs"
	BucketPlatformFees   Bucket = "platform_fees"
	BucketShippingCost   Bucket = "shipping_cost"
	BucketTaxLiability   Bucket = "tax_liability"
	BucketClearing       Bucket = "clearing"
	BucketExpenses       Bucket = "expenses"
)

// RequiredBuckets must all be mapped before any posting may occur.
// shipping_income and expenses are optional: orgs without them fold
// shipping into revenue and expenses into fees.
var RequiredBuckets = []Bucket{
	BucketRevenue,
	BucketCOGS,
	BucketPlatformFees,
	BucketShippingCost,
	BucketTaxLiability,
	BucketClearing,
}

// recommendedTypes is the per-bucket allow-list of external account
// types. A mapping outside the list is a warning, never a hard failure.
var recommendedTypes = map[Bucket][]string{
	BucketRevenue:        {"Income"},
	BucketShippingIncome: {"Income"},
	BucketCOGS:           {"Cost of Goods Sold", "Expense"},
	BucketPlatformFees:   {"Expense"},
	BucketShippingCost:   {"Expense"},
	BucketTaxLiability:   {"Liability", "Other Current Liability"},
	BucketClearing:       {"Bank", "Other Current Asset"},
	BucketExpenses:       {"Expense"},
}

// IsRecommendedType reports whether the external account's reported
// type/subtype is within the bucket's allow-list.
func IsRecommendedType(bucket Bucket, accountType, accountSubtype string) bool {
	allowed, ok := recommendedTypes[bucket]
	if !ok {
		return true
	}
	for _, t := range allowed {
		if t == accountType || t == accountSubtype {
			return true
		}
	}
	return false
}

// MissingBuckets returns the required buckets absent from mappings, in
// the canonical required order.
func MissingBuckets(mappings []*AccountMapping) []Bucket {
	present := make(map[Bucket]bool, len(mappings))
	for _, m := range mappings {
		present[m.Bucket] = true
	}

	var missing []Bucket
	for _, b := range RequiredBuckets {
		if !present[b] {
			missing = append(missing, b)
		}
	}
	return missing
}

// AccountMapping binds one bucket to a concrete account in the external
// chart of accounts. At most one mapping exists per (org, provider,
// bucket) tuple.
type AccountMapping struct {
	OrgID               string `json:"orgId"`
	Provider            string `json:"provider"`
	Bucket              Bucket `json:"bucket"`
	ExternalAccountID   string `json:"externalAccountId"`
	ExternalDisplayName string `json:"externalDisplayName"`
}
