package db

import (
	"time"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

// Store defines the interface for database operations
type Store interface {
	Initialize() error
	Close() error

	SaveSale(s *models.Sale) (int64, error)
	GetSaleByIdempotencyKey(orgID, key string) (*models.Sale, error)
	GetSalesInPeriod(orgID, start, end string) ([]*models.Sale, error)
	SetSalePayoutAt(saleID int64, payoutAt time.Time) error

	SaveExpense(e *models.Expense) (int64, error)
	GetExpenseByIdempotencyKey(orgID, key string) (*models.Expense, error)
	GetExpensesInPeriod(orgID, start, end string) ([]*models.Expense, error)

	UpsertAccountMapping(am *models.AccountMapping) error
	GetAccountMapping(orgID, provider string, bucket models.Bucket) (*models.AccountMapping, error)
	GetAccountMappings(orgID, provider string) ([]*models.AccountMapping, error)

	CreateJournalExport(e *models.JournalExport) error
	UpdateJournalExport(e *models.JournalExport) error
	GetJournalExport(id string) (*models.JournalExport, error)

	UpsertDiagnostics(s *models.DiagnosticsSnapshot) error
	GetDiagnostics(orgID string) (*models.DiagnosticsSnapshot, error)

	AppendAlertEvent(e *models.AlertEvent) error
	GetLatestAlertEvent(orgID string) (*models.AlertEvent, error)
	GetAlertEvents(orgID string) ([]*models.AlertEvent, error)
}

// Ensure DB implements Store
var _ Store = (*DB)(nil)

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
