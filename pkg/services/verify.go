package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/resoldhq/ledgermirror/pkg/ledger"
	"github.com/resoldhq/ledgermirror/pkg/models"
)

// Verifier re-queries the external ledger for previously posted entry
// ids to confirm they still exist.
type Verifier struct {
	client ledger.Client
}

func NewVerifier(client ledger.Client) *Verifier {
	return &Verifier{client: client}
}

// Verify looks up each id with the provider. An id the provider does
// not know yields Found=false — a normal state (ledger indexing can lag
// a posting) that callers retry on their own schedule. Only transport
// or provider failures are returned as errors.
func (v *Verifier) Verify(ctx context.Context, orgID string, externalIDs []string) ([]models.VerificationResult, error) {
	results := make([]models.VerificationResult, 0, len(externalIDs))
	for _, id := range externalIDs {
		entry, txnDate, err := v.client.GetJournalEntry(ctx, id)
		if err != nil {
			return nil, err
		}

		result := models.VerificationResult{ID: id}
		if entry != nil {
			result.Found = true
			result.TxnDate = txnDate
		} else {
			log.Debug().Str("org", orgID).Str("id", id).Msg("posted entry not found in ledger")
		}
		results = append(results, result)
	}
	return results, nil
}
