package ledger

import (
	"context"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// Client defines the subset of the external general-ledger provider's
// API this system needs: posting and reading journal entries, the chart
// of accounts, and the connection credential state.
type Client interface {
	ListAccounts(ctx context.Context) ([]Account, error)
	PostJournalEntry(ctx context.Context, entry *models.JournalEntry) (string, error)
	// GetJournalEntry returns (nil, nil) when the id is unknown to the
	// provider; absence is a value, not an error.
	GetJournalEntry(ctx context.Context, externalID string) (*models.JournalEntry, string, error)
	ConnectionStatus(ctx context.Context) (models.ConnectionStatus, error)
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// Ensure MockLedger implements Client
var _ Client = (*MockLedger)(nil)
