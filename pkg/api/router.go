package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/resoldhq/ledgermirror/db"
	"github.com/resoldhq/ledgermirror/pkg/services"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	store         db.Store
	ingester      *services.Ingester
	syncer        *services.JournalSyncer
	verifier      *services.Verifier
	diagnostician *services.Diagnostician
}

func NewHandler(store db.Store, ingester *services.Ingester, syncer *services.JournalSyncer,
	verifier *services.Verifier, diagnostician *services.Diagnostician) *Handler {
	return &Handler{
		store:         store,
		ingester:      ingester,
		syncer:        syncer,
		verifier:      verifier,
		diagnostician: diagnostician,
	}
}

// SetupRouter wires the API routes.
func SetupRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(loggingMiddleware)

	api.HandleFunc("/orgs/{orgID}/ingest", h.Ingest).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{orgID}/diagnostics", h.Diagnostics).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{orgID}/test-posting", h.TestPosting).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{orgID}/verify", h.Verify).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{orgID}/journal-sync", h.JournalSync).Methods(http.MethodPost)
	api.HandleFunc("/orgs/{orgID}/mappings", h.GetMappings).Methods(http.MethodGet)
	api.HandleFunc("/orgs/{orgID}/mappings", h.PutMapping).Methods(http.MethodPut)
	api.HandleFunc("/orgs/{orgID}/alerts", h.GetAlertEvents).Methods(http.MethodGet)

	router.HandleFunc("/healthz", healthCheckHandler).Methods(http.MethodGet)

	return router
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Error marshaling JSON response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
