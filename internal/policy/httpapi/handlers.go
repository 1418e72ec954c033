// Package httpapi exposes the Policy Engine over HTTP: POST /evaluate,
// POST /reload, GET /policy. Grounded on services/policy/app/main.py's
// FastAPI routes and on the teacher's handler/router split.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
	"github.com/vitaliisemenov/videowall-controlplane/internal/configauthority"
	"github.com/vitaliisemenov/videowall-controlplane/internal/policy"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/middleware"
)

// Handlers wires the Engine, the config Holder (for the active
// PolicyConfig), and the TagClient into HTTP endpoints.
type Handlers struct {
	engine    *policy.Engine
	holder    *configauthority.Holder
	tagClient *policy.TagClient
	logger    *slog.Logger
}

// New builds the Policy Engine's HTTP handlers.
func New(engine *policy.Engine, holder *configauthority.Holder, tagClient *policy.TagClient, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{engine: engine, holder: holder, tagClient: tagClient, logger: logger}
}

type evaluateRequest struct {
	WallID        string   `json:"wall_id"`
	SourceID      string   `json:"source_id"`
	OperatorID    string   `json:"operator_id"`
	OperatorRoles []string `json:"operator_roles"`
	OperatorTags  []string `json:"operator_tags"`
}

// Evaluate handles POST /evaluate: enriches the request with live wall and
// source tags from the Management Service, then runs the active
// PolicyConfig's rules against it.
func (h *Handlers) Evaluate(w http.ResponseWriter, r *http.Request) {
	var body evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid request body"))
		return
	}
	if body.WallID == "" || body.SourceID == "" || body.OperatorID == "" {
		apierrors.Write(w, apierrors.ValidationError("wall_id, source_id, and operator_id are required"))
		return
	}

	wallTags, sourceTags := h.tagClient.Lookup(r.Context(), body.WallID, body.SourceID)

	snap := h.holder.Current()
	var cfg configauthority.PolicyConfig
	if snap != nil {
		cfg = snap.Policy
	}

	decision := h.engine.Evaluate(cfg, policy.Request{
		WallID:        body.WallID,
		SourceID:      body.SourceID,
		OperatorID:    body.OperatorID,
		OperatorRoles: body.OperatorRoles,
		OperatorTags:  body.OperatorTags,
		SourceTags:    sourceTags,
		WallTags:      wallTags,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(decision)
}

// Reload handles POST /reload: forces the config Holder to re-read the
// policy document from disk.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	if _, err := h.holder.Reload(r.Context()); err != nil {
		apierrors.Write(w, apierrors.ConfigInvalidError([]string{err.Error()}))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"reloaded": true})
}

// GetPolicy handles GET /policy: returns the currently active policy
// document, for operator visibility.
func (h *Handlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	snap := h.holder.Current()
	if snap == nil {
		apierrors.Write(w, apierrors.NotFoundError("policy"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snap.Policy)
}

// NewRouter builds the Policy Engine's complete HTTP router, including the
// shared middleware stack. This service is internal-network-only (called
// by the Management Service, not end users), so it carries no auth
// middleware of its own — only request ID, logging, metrics, and recovery.
func NewRouter(h *Handlers, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(apimw.RequestID)
	r.Use(apimw.Logging(logger))
	r.Use(apimw.Metrics)
	r.Use(apimw.Recovery(logger))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()))

	r.HandleFunc("/healthz", HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/evaluate", h.Evaluate).Methods(http.MethodPost)
	r.HandleFunc("/reload", h.Reload).Methods(http.MethodPost)
	r.HandleFunc("/policy", h.GetPolicy).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// HealthCheck answers liveness probes.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
