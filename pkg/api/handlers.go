package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/resoldhq/ledgermirror/pkg/models"
	"github.com/resoldhq/ledgermirror/pkg/services"
)

// Ingest imports a batch of marketplace rows for the org.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]

	var request struct {
		SourceLabel string               `json:"sourceLabel"`
		Rows        []services.IngestRow `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(request.Rows) == 0 {
		respondWithError(w, http.StatusBadRequest, "No rows provided")
		return
	}

	result, err := h.ingester.Ingest(orgID, request.SourceLabel, request.Rows)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"insertedCount": result.InsertedCount(),
		"duplicates":    result.Duplicates,
		"errors":        result.Errors,
	})
}

// Diagnostics evaluates the org's integration health, optionally
// persisting the snapshot.
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]

	var request struct {
		Save              bool    `json:"save"`
		LastTestForwardID string  `json:"lastTestForwardId,omitempty"`
		LastTestReverseID string  `json:"lastTestReverseId,omitempty"`
		LastVerifiedAt    *string `json:"lastVerifiedAt,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	opts := services.EvaluateOptions{
		Save:              request.Save,
		LastTestForwardID: request.LastTestForwardID,
		LastTestReverseID: request.LastTestReverseID,
	}
	if request.LastVerifiedAt != nil {
		t, err := time.Parse(time.RFC3339, *request.LastVerifiedAt)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid lastVerifiedAt format. Use RFC 3339")
			return
		}
		opts.LastVerifiedAt = &t
	}

	snapshot, err := h.diagnostician.Evaluate(r.Context(), orgID, opts)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"health": map[string]interface{}{
			"connected":    snapshot.Connected,
			"expiresInSec": snapshot.ExpiresInSec,
		},
		"missing":  snapshot.Missing,
		"warnings": snapshot.Warnings,
		"overall":  snapshot.Overall,
	})
}

// TestPosting runs the auto-reversing connectivity test. A partial
// failure still returns the forward id so an operator can reverse it.
func (h *Handler) TestPosting(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]

	var request struct {
		SameDayReverse bool   `json:"sameDayReverse"`
		Note           string `json:"note,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	result, err := h.syncer.RunTestPosting(r.Context(), orgID, request.SameDayReverse, request.Note)
	if err != nil {
		var partial *models.PartialSequenceError
		if errors.As(err, &partial) {
			respondWithJSON(w, http.StatusBadGateway, map[string]interface{}{
				"forwardId":   partial.ForwardID,
				"date":        partial.ForwardDate,
				"reverseDate": result.ReverseDate,
				"error":       partial.Error(),
			})
			return
		}
		var incomplete *models.MappingIncompleteError
		if errors.As(err, &incomplete) {
			respondWithError(w, http.StatusConflict, incomplete.Error())
			return
		}
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

// Verify checks previously posted entry ids against the ledger.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]

	var request struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(request.IDs) == 0 {
		respondWithError(w, http.StatusBadRequest, "No ids provided")
		return
	}

	results, err := h.verifier.Verify(r.Context(), orgID, request.IDs)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// JournalSync previews or commits the period's journal entry.
func (h *Handler) JournalSync(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]

	var request struct {
		Mode  string `json:"mode"`
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	for _, d := range []string{request.Start, request.End} {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid period date format. Use YYYY-MM-DD")
			return
		}
	}
	period := services.Period{Start: request.Start, End: request.End}

	switch request.Mode {
	case "preview", "":
		entry, export, err := h.syncer.Preview(r.Context(), orgID, period)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, err.Error())
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"exportId": export.ID,
			"status":   export.Status,
			"entry":    entry,
		})
	case "commit":
		export, err := h.syncer.Commit(r.Context(), orgID, period)
		if err != nil {
			var notConnected *models.NotConnectedError
			var incomplete *models.MappingIncompleteError
			switch {
			case errors.As(err, &notConnected), errors.As(err, &incomplete):
				respondWithError(w, http.StatusConflict, err.Error())
			case export != nil:
				// the export row records the failure; surface both
				respondWithJSON(w, http.StatusBadGateway, map[string]interface{}{
					"exportId": export.ID,
					"status":   export.Status,
					"error":    export.ErrorReason,
				})
			default:
				respondWithError(w, http.StatusBadGateway, err.Error())
			}
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"exportId":   export.ID,
			"status":     export.Status,
			"externalId": export.ExternalID,
		})
	default:
		respondWithError(w, http.StatusBadRequest, "mode must be preview or commit")
	}
}

// GetMappings lists the org's bucket mappings and which required
// buckets are still missing.
func (h *Handler) GetMappings(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		respondWithError(w, http.StatusBadRequest, "provider query parameter is required")
		return
	}

	mappings, err := h.store.GetAccountMappings(orgID, provider)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"mappings": mappings,
		"missing":  models.MissingBuckets(mappings),
	})
}

// PutMapping upserts one bucket mapping.
func (h *Handler) PutMapping(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]

	var mapping models.AccountMapping
	if err := json.NewDecoder(r.Body).Decode(&mapping); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	mapping.OrgID = orgID

	if mapping.Provider == "" || mapping.Bucket == "" || mapping.ExternalAccountID == "" {
		respondWithError(w, http.StatusBadRequest, "provider, bucket and externalAccountId are required")
		return
	}

	if err := h.store.UpsertAccountMapping(&mapping); err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, mapping)
}

// GetAlertEvents returns the org's alert audit trail.
func (h *Handler) GetAlertEvents(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["orgID"]

	events, err := h.store.GetAlertEvents(orgID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
