// Package httpapi exposes the Configuration Authority over HTTP: the
// active declarative snapshot, its derived metrics, per-entity listings,
// and a dry-run/reload control surface. Grounded on
// services/config-authority/app/main.py's FastAPI routes and on the
// Policy Engine and Audit Service httpapi packages' handler/router split.
package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
	"github.com/vitaliisemenov/videowall-controlplane/internal/configauthority"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/middleware"
)

// Handlers wires a Holder and its Loader into HTTP endpoints.
type Handlers struct {
	holder *configauthority.Holder
	loader *configauthority.Loader
	logger *slog.Logger
}

// New builds the Configuration Authority's HTTP handlers.
func New(holder *configauthority.Holder, loader *configauthority.Loader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{holder: holder, loader: loader, logger: logger}
}

func (h *Handlers) current(w http.ResponseWriter) *configauthority.Snapshot {
	snap := h.holder.Current()
	if snap == nil {
		apierrors.Write(w, apierrors.ServiceUnavailableError("no configuration loaded yet"))
		return nil
	}
	return snap
}

// GetConfig handles GET /config: the full parsed, validated snapshot.
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	writeJSON(w, snap)
}

// GetRaw handles GET /config/raw: the verbatim YAML document last loaded.
func (h *Handlers) GetRaw(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write([]byte(snap.RawYAML))
}

// GetVersion handles GET /config/version: the config hash and reload
// epoch, polled by the Management Service's reconciler to detect changes
// cheaply.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	writeJSON(w, map[string]any{
		"config_hash": snap.Derived.ConfigHash,
		"epoch":       h.holder.Epoch(),
		"loaded_from": snap.LoadedFrom,
		"loaded_at":   snap.LoadedAtUnix,
	})
}

// GetDerived handles GET /derived: the computed capacity metrics alone.
func (h *Handlers) GetDerived(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	writeJSON(w, snap.Derived)
}

// GetWalls handles GET /walls.
func (h *Handlers) GetWalls(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	writeJSON(w, map[string]any{"walls": snap.Walls})
}

// GetSources handles GET /sources.
func (h *Handlers) GetSources(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	writeJSON(w, map[string]any{"sources": snap.Sources})
}

// GetPolicy handles GET /policy: the declarative policy section alone, so
// the Policy Engine (and operators) can inspect it without the rest of the
// snapshot.
func (h *Handlers) GetPolicy(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	writeJSON(w, snap.Policy)
}

// DryRun handles POST /config/dry-run: validates a candidate document and
// reports the metrics it would produce, without ever touching the active
// Holder.
func (h *Handlers) DryRun(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("failed to read request body"))
		return
	}
	result := h.loader.DryRun(string(body))
	writeJSON(w, result)
}

// Reload handles POST /config/reload: forces an immediate re-read of the
// config file from disk, outside the fsnotify watch loop.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.holder.Reload(r.Context())
	if err != nil {
		apierrors.Write(w, apierrors.ConfigInvalidError([]string{err.Error()}))
		return
	}
	writeJSON(w, map[string]any{"reloaded": true, "config_hash": snap.Derived.ConfigHash})
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// NewRouter builds the Configuration Authority's HTTP router.
// Internal-network-only like the Policy Engine and Audit Service, so no
// end-user auth middleware is mounted.
func NewRouter(h *Handlers, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(apimw.RequestID)
	r.Use(apimw.Logging(logger))
	r.Use(apimw.Metrics)
	r.Use(apimw.Recovery(logger))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()))

	r.HandleFunc("/healthz", healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/config", h.GetConfig).Methods(http.MethodGet)
	api.HandleFunc("/config/raw", h.GetRaw).Methods(http.MethodGet)
	api.HandleFunc("/config/version", h.GetVersion).Methods(http.MethodGet)
	api.HandleFunc("/config/dry-run", h.DryRun).Methods(http.MethodPost)
	api.HandleFunc("/config/reload", h.Reload).Methods(http.MethodPost)
	api.HandleFunc("/derived", h.GetDerived).Methods(http.MethodGet)
	api.HandleFunc("/walls", h.GetWalls).Methods(http.MethodGet)
	api.HandleFunc("/sources", h.GetSources).Methods(http.MethodGet)
	api.HandleFunc("/policy", h.GetPolicy).Methods(http.MethodGet)

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
