package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/ledger"
	"github.com/resoldhq/ledgermirror/pkg/models"
	"github.com/resoldhq/ledgermirror/pkg/services"
)

func newTestRouter(t *testing.T) (http.Handler, *db.MockStore, *ledger.MockLedger) {
	t.Helper()

	store := db.NewMockStore()
	client := ledger.NewMockLedger()
	dispatcher := services.NewAlertDispatcher(store, nil, nil, "https://app.example.com", time.Minute)

	h := NewHandler(
		store,
		services.NewIngester(store, "USD"),
		services.NewJournalSyncer(store, client, "quickbooks", "USD"),
		services.NewVerifier(client),
		services.NewDiagnostician(store, client, "quickbooks", dispatcher, true),
	)
	return SetupRouter(h), store, client
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestPutAndGetMappings(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/orgs/org-1/mappings", map[string]string{
		"provider":            "quickbooks",
		"bucket":              "revenue",
		"externalAccountId":   "79",
		"externalDisplayName": "Sales Revenue",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/orgs/org-1/mappings?provider=quickbooks", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)

	mappings := body["mappings"].([]interface{})
	if len(mappings) != 1 {
		t.Fatalf("mappings = %v, want 1", mappings)
	}
	// revenue is mapped now; the rest of the required set is still missing
	missing := body["missing"].([]interface{})
	if len(missing) != len(models.RequiredBuckets)-1 {
		t.Errorf("missing = %v, want %d buckets", missing, len(models.RequiredBuckets)-1)
	}
}

func TestPutMappingValidation(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPut, "/api/v1/orgs/org-1/mappings", map[string]string{
		"provider": "quickbooks",
		"bucket":   "revenue",
		// externalAccountId missing
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGetMappingsRequiresProvider(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orgs/org-1/mappings", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestIngestEndpoint(t *testing.T) {
	router, store, _ := newTestRouter(t)

	payload := map[string]interface{}{
		"sourceLabel": "api-import",
		"rows": []map[string]string{
			{"order id": "ORD-1", "date": "2026-03-14", "price": "54.00", "platform": "ebay"},
		},
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/ingest", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["insertedCount"].(float64) != 1 {
		t.Errorf("insertedCount = %v, want 1", body["insertedCount"])
	}
	if len(store.Sales) != 1 {
		t.Errorf("stored sales = %d, want 1", len(store.Sales))
	}

	// replaying the same payload inserts nothing
	rec = doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/ingest", payload)
	body = decodeBody(t, rec)
	if body["insertedCount"].(float64) != 0 || body["duplicates"].(float64) != 1 {
		t.Errorf("replay = %v", body)
	}
}

func TestIngestEndpointRejectsEmptyBatch(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/ingest", map[string]interface{}{
		"rows": []map[string]string{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyEndpoint(t *testing.T) {
	router, _, client := newTestRouter(t)
	client.Entries["qb-1"] = &models.JournalEntry{Date: "2026-03-14"}
	client.Dates["qb-1"] = "2026-03-14"

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/verify", map[string]interface{}{
		"ids": []string{"qb-1", "qb-ghost"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	results := body["results"].([]interface{})
	if len(results) != 2 {
		t.Fatalf("results = %v", results)
	}
	first := results[0].(map[string]interface{})
	second := results[1].(map[string]interface{})
	if first["found"] != true || second["found"] != false {
		t.Errorf("found flags = %v/%v, want true/false", first["found"], second["found"])
	}
}

func TestJournalSyncPreviewEndpoint(t *testing.T) {
	router, store, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/journal-sync", map[string]string{
		"mode":  "preview",
		"start": "2026-03-01",
		"end":   "2026-03-31",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "preview" {
		t.Errorf("status = %v, want preview", body["status"])
	}
	if len(store.Exports) != 1 {
		t.Errorf("exports = %d, want 1", len(store.Exports))
	}
}

func TestJournalSyncCommitRefusedWithoutMappings(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/journal-sync", map[string]string{
		"mode":  "commit",
		"start": "2026-03-01",
		"end":   "2026-03-31",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestJournalSyncRejectsBadDates(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/journal-sync", map[string]string{
		"mode":  "preview",
		"start": "03/01/2026",
		"end":   "2026-03-31",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestTestPostingEndpointRequiresMappings(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/test-posting", map[string]bool{
		"sameDayReverse": true,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
}

func TestDiagnosticsEndpointReportsHealth(t *testing.T) {
	router, _, client := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/orgs/org-1/diagnostics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	health := body["health"].(map[string]interface{})
	if health["connected"] != true {
		t.Errorf("health.connected = %v, want true", health["connected"])
	}
	if got := int64(health["expiresInSec"].(float64)); got != client.Status.ExpiresInSec {
		t.Errorf("health.expiresInSec = %d, want %d", got, client.Status.ExpiresInSec)
	}
	// no mappings configured yet
	if body["overall"] != string(models.HealthRed) {
		t.Errorf("overall = %v, want red", body["overall"])
	}
}

func TestGetAlertEventsEndpoint(t *testing.T) {
	router, store, _ := newTestRouter(t)
	store.AppendAlertEvent(&models.AlertEvent{
		ID: "evt-1", OrgID: "org-1",
		PrevStatus: models.HealthGreen, NextStatus: models.HealthRed,
		Kind: models.AlertKindDegraded, CreatedAt: time.Now().UTC(),
	})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/orgs/org-1/alerts", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	events := body["events"].([]interface{})
	if len(events) != 1 {
		t.Errorf("events = %v, want 1", events)
	}
}
