package db

import (
	"fmt"
	"sync"
	"time"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// MockStore is an in-memory implementation of Store for testing
type MockStore struct {
	mu sync.Mutex

	// Mock data storage
	Sales       map[string]*models.Sale    // keyed by orgID|idempotencyKey
	Expenses    map[string]*models.Expense // keyed by orgID|idempotencyKey
	Mappings    map[string]*models.AccountMapping
	Exports     map[string]*models.JournalExport
	Diagnostics map[string]*models.DiagnosticsSnapshot
	AlertEvents []*models.AlertEvent

	nextID int64

	// Error values to return
	SaveSaleErr          error
	SaveExpenseErr       error
	GetSaleErr           error
	GetExpenseErr        error
	UpsertMappingErr     error
	GetMappingsErr       error
	CreateExportErr      error
	UpdateExportErr      error
	UpsertDiagnosticsErr error
	GetDiagnosticsErr    error
	AppendAlertEventErr  error
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		Sales:       make(map[string]*models.Sale),
		Expenses:    make(map[string]*models.Expense),
		Mappings:    make(map[string]*models.AccountMapping),
		Exports:     make(map[string]*models.JournalExport),
		Diagnostics: make(map[string]*models.DiagnosticsSnapshot),
	}
}

func (m *MockStore) Initialize() error { return nil }

func (m *MockStore) Close() error { return nil }

func saleKey(orgID, key string) string { return orgID + "|" + key }

func mappingKey(orgID, provider string, bucket models.Bucket) string {
	return orgID + "|" + provider + "|" + string(bucket)
}

func (m *MockStore) SaveSale(s *models.Sale) (int64, error) {
	if m.SaveSaleErr != nil {
		return 0, m.SaveSaleErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey(s.OrgID, s.IdempotencyKey)
	if _, ok := m.Sales[k]; ok {
		return 0, fmt.Errorf("UNIQUE constraint failed: sales.org_id, sales.idempotency_key")
	}
	m.nextID++
	s.ID = m.nextID
	m.Sales[k] = s
	return s.ID, nil
}

func (m *MockStore) GetSaleByIdempotencyKey(orgID, key string) (*models.Sale, error) {
	if m.GetSaleErr != nil {
		return nil, m.GetSaleErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.Sales[saleKey(orgID, key)]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (m *MockStore) GetSalesInPeriod(orgID, start, end string) ([]*models.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var sales []*models.Sale
	for _, s := range m.Sales {
		if s.OrgID != orgID {
			continue
		}
		d := s.OccurredAt.Format(time.DateOnly)
		if d >= start && d <= end {
			sales = append(sales, s)
		}
	}
	return sales, nil
}

func (m *MockStore) SetSalePayoutAt(saleID int64, payoutAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.Sales {
		if s.ID == saleID {
			s.PayoutAt = &payoutAt
			return nil
		}
	}
	return fmt.Errorf("no sale found with id: %d", saleID)
}

func (m *MockStore) SaveExpense(e *models.Expense) (int64, error) {
	if m.SaveExpenseErr != nil {
		return 0, m.SaveExpenseErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := saleKey(e.OrgID, e.IdempotencyKey)
	if _, ok := m.Expenses[k]; ok {
		return 0, fmt.Errorf("UNIQUE constraint failed: expenses.org_id, expenses.idempotency_key")
	}
	m.nextID++
	e.ID = m.nextID
	m.Expenses[k] = e
	return e.ID, nil
}

func (m *MockStore) GetExpenseByIdempotencyKey(orgID, key string) (*models.Expense, error) {
	if m.GetExpenseErr != nil {
		return nil, m.GetExpenseErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.Expenses[saleKey(orgID, key)]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *MockStore) GetExpensesInPeriod(orgID, start, end string) ([]*models.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expenses []*models.Expense
	for _, e := range m.Expenses {
		if e.OrgID != orgID {
			continue
		}
		d := e.OccurredAt.Format(time.DateOnly)
		if d >= start && d <= end {
			expenses = append(expenses, e)
		}
	}
	return expenses, nil
}

func (m *MockStore) UpsertAccountMapping(am *models.AccountMapping) error {
	if m.UpsertMappingErr != nil {
		return m.UpsertMappingErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Mappings[mappingKey(am.OrgID, am.Provider, am.Bucket)] = am
	return nil
}

func (m *MockStore) GetAccountMapping(orgID, provider string, bucket models.Bucket) (*models.AccountMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	am, ok := m.Mappings[mappingKey(orgID, provider, bucket)]
	if !ok {
		return nil, nil
	}
	return am, nil
}

func (m *MockStore) GetAccountMappings(orgID, provider string) ([]*models.AccountMapping, error) {
	if m.GetMappingsErr != nil {
		return nil, m.GetMappingsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var mappings []*models.AccountMapping
	for _, am := range m.Mappings {
		if am.OrgID == orgID && am.Provider == provider {
			mappings = append(mappings, am)
		}
	}
	return mappings, nil
}

func (m *MockStore) CreateJournalExport(e *models.JournalExport) error {
	if m.CreateExportErr != nil {
		return m.CreateExportErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	m.Exports[e.ID] = &cp
	return nil
}

func (m *MockStore) UpdateJournalExport(e *models.JournalExport) error {
	if m.UpdateExportErr != nil {
		return m.UpdateExportErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.Exports[e.ID]; !ok {
		return fmt.Errorf("no journal export found with id: %s", e.ID)
	}
	e.UpdatedAt = time.Now().UTC()
	cp := *e
	m.Exports[e.ID] = &cp
	return nil
}

func (m *MockStore) GetJournalExport(id string) (*models.JournalExport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.Exports[id]
	if !ok {
		return nil, nil
	}
	return e, nil
}

func (m *MockStore) UpsertDiagnostics(s *models.DiagnosticsSnapshot) error {
	if m.UpsertDiagnosticsErr != nil {
		return m.UpsertDiagnosticsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *s
	m.Diagnostics[s.OrgID] = &cp
	return nil
}

func (m *MockStore) GetDiagnostics(orgID string) (*models.DiagnosticsSnapshot, error) {
	if m.GetDiagnosticsErr != nil {
		return nil, m.GetDiagnosticsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.Diagnostics[orgID]
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (m *MockStore) AppendAlertEvent(e *models.AlertEvent) error {
	if m.AppendAlertEventErr != nil {
		return m.AppendAlertEventErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	m.AlertEvents = append(m.AlertEvents, &cp)
	return nil
}

func (m *MockStore) GetLatestAlertEvent(orgID string) (*models.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *models.AlertEvent
	for _, e := range m.AlertEvents {
		if e.OrgID != orgID {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	return latest, nil
}

func (m *MockStore) GetAlertEvents(orgID string) ([]*models.AlertEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []*models.AlertEvent
	for _, e := range m.AlertEvents {
		if e.OrgID == orgID {
			events = append(events, e)
		}
	}
	return events, nil
}
