package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// MockLedger is a mock implementation of the ledger Client for testing
type MockLedger struct {
	mu sync.Mutex

	// Mock data to return
	Accounts []Account
	Status   models.ConnectionStatus
	// Entries is keyed by external id; Dates holds the provider-side
	// txn date for each id.
	Entries map[string]*models.JournalEntry
	Dates   map[string]string

	// Posted records every entry given to PostJournalEntry, in order.
	Posted []*models.JournalEntry

	// NextIDs are handed out by PostJournalEntry; when exhausted, ids
	// are generated.
	NextIDs []string

	// Error values to return
	ListAccountsErr     error
	ConnectionStatusErr error
	GetJournalEntryErr  error
	// PostErrs fails the nth post call (0-based); nil entries succeed.
	PostErrs []error

	postCalls int
}

// NewMockLedger creates a connected mock with empty data
func NewMockLedger() *MockLedger {
	return &MockLedger{
		Status:  models.ConnectionStatus{Connected: true, ExpiresInSec: 3600},
		Entries: make(map[string]*models.JournalEntry),
		Dates:   make(map[string]string),
	}
}

func (m *MockLedger) ListAccounts(ctx context.Context) ([]Account, error) {
	if m.ListAccountsErr != nil {
		return nil, m.ListAccountsErr
	}
	return m.Accounts, nil
}

func (m *MockLedger) PostJournalEntry(ctx context.Context, entry *models.JournalEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.postCalls
	m.postCalls++

	if call < len(m.PostErrs) && m.PostErrs[call] != nil {
		return "", m.PostErrs[call]
	}

	var id string
	if call < len(m.NextIDs) {
		id = m.NextIDs[call]
	} else {
		id = fmt.Sprintf("mock-je-%d", call+1)
	}

	m.Posted = append(m.Posted, entry)
	m.Entries[id] = entry
	m.Dates[id] = entry.Date
	return id, nil
}

func (m *MockLedger) GetJournalEntry(ctx context.Context, externalID string) (*models.JournalEntry, string, error) {
	if m.GetJournalEntryErr != nil {
		return nil, "", m.GetJournalEntryErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.Entries[externalID]
	if !ok {
		return nil, "", nil
	}
	return entry, m.Dates[externalID], nil
}

func (m *MockLedger) ConnectionStatus(ctx context.Context) (models.ConnectionStatus, error) {
	if m.ConnectionStatusErr != nil {
		return models.ConnectionStatus{}, m.ConnectionStatusErr
	}
	return m.Status, nil
}
