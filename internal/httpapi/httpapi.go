// Package httpapi is the thin HTTP adaptor over internal/service: route
// table, JSON encode/decode helpers, CORS, and error-kind-to-status
// mapping. No third-party router — the teacher's own net/http.ServeMux
// server in cmd/cliairmonitor/main.go never reaches for one, and this
// service, like the teacher's, listens on loopback only.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/CLIAIRMONITOR/memoryd/internal/apperr"
	"github.com/CLIAIRMONITOR/memoryd/internal/service"
)

// NewMux builds the route table of spec §6 over svc.
func NewMux(svc *service.Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /memories", handleListMemories(svc))
	mux.HandleFunc("POST /memories", handleCreateMemory(svc))
	mux.HandleFunc("GET /memories/{id}", handleGetMemory(svc))
	mux.HandleFunc("DELETE /memories/{id}", handleDeleteMemory(svc))
	mux.HandleFunc("POST /retrieve", handleRetrieve(svc))
	mux.HandleFunc("POST /messages", handleAppendMessage(svc))
	mux.HandleFunc("GET /messages/{agent_id}/{topic_id}", handleListMessages(svc))
	mux.HandleFunc("POST /tokens/count", handleCountTokens(svc))
	mux.HandleFunc("GET /tokens/budget/{agent_id}/{topic_id}", handleTokenBudget(svc))
	mux.HandleFunc("GET /agents", handleListAgents(svc))
	mux.HandleFunc("GET /agents/{agent_id}/topics", handleListTopics(svc))

	return withCORS(mux)
}

// withCORS allows any origin, method, and header — this service listens
// on loopback by default, per spec §6.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.WrapJSON(err, "decode request body")
	}
	return nil
}

// writeError maps an error's apperr.Kind to an HTTP status per spec §7:
// invalid-input -> 400, not-found -> 404, everything else -> 500 with no
// leaked internals.
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	switch kind {
	case apperr.KindInvalidInput:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case apperr.KindNotFound:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, "ok")
}
