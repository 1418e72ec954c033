// Package httpapi exposes the audit chain over HTTP: POST /ingest,
// GET /query, GET /verify. Grounded on services/audit/app/main.py.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/middleware"
)

// Handlers wires a Store into HTTP endpoints.
type Handlers struct {
	store  *audit.Store
	logger *slog.Logger
}

// New builds the audit service's HTTP handlers.
func New(store *audit.Store, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, logger: logger}
}

type ingestRequest struct {
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	ObjectType string         `json:"object_type"`
	ObjectID   string         `json:"object_id"`
	Details    map[string]any `json:"details"`
}

// Ingest handles POST /ingest: appends one event to the chain.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid request body"))
		return
	}
	if req.Action == "" || req.Actor == "" || req.ObjectType == "" || req.ObjectID == "" {
		apierrors.Write(w, apierrors.ValidationError("action, actor, object_type, and object_id are required"))
		return
	}

	ev, err := h.store.Append(r.Context(), audit.Draft{
		Action: req.Action, Actor: req.Actor,
		ObjectType: req.ObjectType, ObjectID: req.ObjectID, Details: req.Details,
	})
	if err != nil {
		h.logger.Error("audit append failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to append audit event"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(ev)
}

// Query handles GET /query?action=&actor=&since=&until=&limit=.
func (h *Handlers) Query(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := audit.QueryParams{
		Action: q.Get("action"),
		Actor:  q.Get("actor"),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("since must be RFC3339"))
			return
		}
		params.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("until must be RFC3339"))
			return
		}
		params.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			apierrors.Write(w, apierrors.ValidationError("limit must be between 1 and 1000"))
			return
		}
		params.Limit = n
	}

	events, err := h.store.Query(r.Context(), params)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to query audit events"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

// Export handles GET /export?since=&until=: returns every matching event,
// oldest first, uncapped — used for compliance bundling rather than
// interactive pagination.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var since, until time.Time
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("since must be RFC3339"))
			return
		}
		since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("until must be RFC3339"))
			return
		}
		until = t
	}

	events, err := h.store.Export(r.Context(), since, until)
	if err != nil {
		h.logger.Error("audit export failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to export audit events"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

// Verify handles GET /verify?last_n=.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	lastN := 1000
	if v := r.URL.Query().Get("last_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200000 {
			apierrors.Write(w, apierrors.ValidationError("last_n must be between 1 and 200000"))
			return
		}
		lastN = n
	}

	result, err := h.store.Verify(r.Context(), lastN)
	if err != nil {
		h.logger.Error("audit verify failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to verify audit chain"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

// NewRouter builds the audit service's HTTP router. Internal-network-only
// like the Policy Engine, so no end-user auth middleware is mounted.
func NewRouter(h *Handlers, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(apimw.RequestID)
	r.Use(apimw.Logging(logger))
	r.Use(apimw.Metrics)
	r.Use(apimw.Recovery(logger))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()))

	r.HandleFunc("/healthz", healthCheck).Methods(http.MethodGet)
	r.HandleFunc("/ingest", h.Ingest).Methods(http.MethodPost)
	r.HandleFunc("/query", h.Query).Methods(http.MethodGet)
	r.HandleFunc("/verify", h.Verify).Methods(http.MethodGet)
	r.HandleFunc("/export", h.Export).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
