package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/resoldhq/ledgermirror/pkg/models"
)

func TestListAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/realm-1/accounts" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"accounts": []Account{
				{ID: "79", Name: "Sales Revenue", Type: "Income", Active: true},
				{ID: "80", Name: "Clearing", Type: "Bank", Active: true},
			},
		})
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "test-key", "realm-1")
	accounts, err := c.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts failed: %v", err)
	}
	if len(accounts) != 2 || accounts[0].Name != "Sales Revenue" {
		t.Errorf("accounts = %+v", accounts)
	}
}

func TestPostJournalEntrySendsDecimalAmounts(t *testing.T) {
	var received wireEntry
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/realm-1/journalentries" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "qb-901"})
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "test-key", "realm-1")
	entry := &models.JournalEntry{
		Date:     "2026-03-31",
		Currency: "USD",
		Lines: []models.JournalLine{
			{AccountID: "80", Debit: 4631},
			{AccountID: "79", Credit: 4631},
		},
	}

	id, err := c.PostJournalEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("PostJournalEntry failed: %v", err)
	}
	if id != "qb-901" {
		t.Errorf("id = %q, want qb-901", id)
	}

	// amounts leave as decimal strings, never integers or floats
	if len(received.Lines) != 2 {
		t.Fatalf("wire lines = %d, want 2", len(received.Lines))
	}
	if received.Lines[0].Amount != "46.31" || received.Lines[0].Posting != "debit" {
		t.Errorf("wire line 0 = %+v", received.Lines[0])
	}
	if received.Lines[1].Amount != "46.31" || received.Lines[1].Posting != "credit" {
		t.Errorf("wire line 1 = %+v", received.Lines[1])
	}
}

func TestPostJournalEntryRefusesUnbalanced(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "test-key", "realm-1")
	entry := &models.JournalEntry{
		Date:     "2026-03-31",
		Currency: "USD",
		Lines: []models.JournalLine{
			{AccountID: "80", Debit: 100},
			{AccountID: "79", Credit: 99},
		},
	}

	if _, err := c.PostJournalEntry(context.Background(), entry); err == nil {
		t.Fatal("unbalanced entry was posted")
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("unbalanced entry reached the provider")
	}
}

func TestGetJournalEntryNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "test-key", "realm-1")
	entry, txnDate, err := c.GetJournalEntry(context.Background(), "qb-missing")
	if err != nil {
		t.Fatalf("a missing entry is not an error: %v", err)
	}
	if entry != nil || txnDate != "" {
		t.Errorf("entry = %+v, txnDate = %q, want nil and empty", entry, txnDate)
	}
}

func TestGetJournalEntryRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wireEntryResponse{
			ID:      "qb-901",
			TxnDate: "2026-03-31",
			Entry: wireEntry{
				Date:     "2026-03-31",
				Currency: "USD",
				Lines: []wireLine{
					{AccountID: "80", Amount: "46.31", Posting: "debit"},
					{AccountID: "79", Amount: "46.31", Posting: "credit"},
				},
			},
		})
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "test-key", "realm-1")
	entry, txnDate, err := c.GetJournalEntry(context.Background(), "qb-901")
	if err != nil {
		t.Fatalf("GetJournalEntry failed: %v", err)
	}
	if txnDate != "2026-03-31" {
		t.Errorf("txnDate = %q", txnDate)
	}
	if entry.Lines[0].Debit != 4631 || entry.Lines[1].Credit != 4631 {
		t.Errorf("minor units = %d/%d, want 4631/4631", entry.Lines[0].Debit, entry.Lines[1].Credit)
	}
}

func TestConnectionStatusUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "expired-key", "realm-1")
	status, err := c.ConnectionStatus(context.Background())
	if err != nil {
		t.Fatalf("an expired token is a disconnected state, not an error: %v", err)
	}
	if status.Connected {
		t.Error("connected = true with an expired token")
	}
}

func TestDoRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "transient", http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"accounts": []Account{}})
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "test-key", "realm-1")
	if _, err := c.ListAccounts(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL, "test-key", "realm-1")
	_, err := c.ListAccounts(context.Background())

	var apiErr *models.ExternalApiError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want ExternalApiError", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Retryable {
		t.Errorf("apiErr = %+v, want non-retryable 400", apiErr)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1", got)
	}
}
