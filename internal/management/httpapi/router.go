package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/auth"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/bundle"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/reconcile"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/storage"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/token"
	"github.com/vitaliisemenov/videowall-controlplane/pkg/middleware"
)

// Handlers wires storage, the policy/audit proxies, token minting, the
// reconciler, and the bundle signer into HTTP endpoints.
type Handlers struct {
	walls    *storage.WallRepository
	sources  *storage.SourceRepository
	layouts  *storage.LayoutRepository
	auditLog *audit.Store

	policy *PolicyClient
	auditX *AuditClient

	minter      *token.Minter
	reconciler  *reconcile.Reconciler
	signer      *bundle.Signer

	logger *slog.Logger
}

// New builds the Management Service's HTTP handlers.
func New(
	walls *storage.WallRepository,
	sources *storage.SourceRepository,
	layouts *storage.LayoutRepository,
	auditLog *audit.Store,
	policyClient *PolicyClient,
	auditClient *AuditClient,
	minter *token.Minter,
	reconciler *reconcile.Reconciler,
	signer *bundle.Signer,
	logger *slog.Logger,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		walls: walls, sources: sources, layouts: layouts, auditLog: auditLog,
		policy: policyClient, auditX: auditClient,
		minter: minter, reconciler: reconciler, signer: signer,
		logger: logger,
	}
}

// actorFor resolves the audit-log actor name for a request: the
// authenticated operator's subject, or "unknown" if somehow absent.
func actorFor(r *http.Request) string {
	if u := apimw.UserFromContext(r.Context()); u != nil && u.Subject != "" {
		return u.Subject
	}
	return "unknown"
}

// NewRouter builds the Management Service's complete HTTP router: the
// shared middleware stack, bearer auth, and the authorization-matrix-gated
// subrouters from spec §4.3.
func NewRouter(h *Handlers, verifier *auth.Verifier, rateLimiter *apimw.RateLimiter, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(apimw.RequestID)
	r.Use(apimw.Logging(logger))
	r.Use(apimw.Metrics)
	r.Use(apimw.Recovery(logger))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()))
	r.Use(apimw.CORS(apimw.DefaultCORSConfig()))

	r.HandleFunc("/healthz", healthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.RequireBearer(verifier))
	if rateLimiter != nil {
		api.Use(rateLimiter.Middleware)
	}

	api.HandleFunc("/auth/whoami", h.WhoAmI).Methods(http.MethodGet)

	viewer := api.NewRoute().Subrouter()
	viewer.Use(auth.RequireRole(apimw.RoleViewer))
	viewer.HandleFunc("/walls", h.ListWalls).Methods(http.MethodGet)
	viewer.HandleFunc("/walls/{id}", h.GetWall).Methods(http.MethodGet)
	viewer.HandleFunc("/sources", h.ListSources).Methods(http.MethodGet)
	viewer.HandleFunc("/sources/{id}", h.GetSource).Methods(http.MethodGet)
	viewer.HandleFunc("/layouts", h.ListLayouts).Methods(http.MethodGet)
	viewer.HandleFunc("/layouts/{id}", h.GetLayout).Methods(http.MethodGet)
	viewer.HandleFunc("/policy/evaluate", h.PolicyEvaluate).Methods(http.MethodPost)
	viewer.HandleFunc("/tokens/subscribe", h.TokensSubscribe).Methods(http.MethodPost)

	operator := api.NewRoute().Subrouter()
	operator.Use(auth.RequireRole(apimw.RoleOperator))
	operator.HandleFunc("/sources", h.CreateSource).Methods(http.MethodPost)
	operator.HandleFunc("/sources/{id}", h.UpdateSource).Methods(http.MethodPut)
	operator.HandleFunc("/layouts", h.CreateLayout).Methods(http.MethodPost)
	operator.HandleFunc("/layouts/{id}", h.UpdateLayout).Methods(http.MethodPut)
	operator.HandleFunc("/layouts/{id}/activate", h.ActivateLayout).Methods(http.MethodPut)

	admin := api.NewRoute().Subrouter()
	admin.Use(auth.RequireRole(apimw.RoleAdmin))
	admin.HandleFunc("/walls", h.CreateWall).Methods(http.MethodPost)
	admin.HandleFunc("/walls/{id}", h.UpdateWall).Methods(http.MethodPut)
	admin.HandleFunc("/walls/{id}", h.DeleteWall).Methods(http.MethodDelete)
	admin.HandleFunc("/sources/{id}", h.DeleteSource).Methods(http.MethodDelete)
	admin.HandleFunc("/layouts/{id}", h.DeleteLayout).Methods(http.MethodDelete)
	admin.HandleFunc("/bundles/export", h.BundlesExport).Methods(http.MethodPost)
	admin.HandleFunc("/bundles/import", h.BundlesImport).Methods(http.MethodPost)
	admin.HandleFunc("/audit/query", h.AuditQuery).Methods(http.MethodGet)
	admin.HandleFunc("/audit/verify", h.AuditVerify).Methods(http.MethodGet)
	admin.HandleFunc("/audit/export", h.AuditExport).Methods(http.MethodGet)
	admin.HandleFunc("/config/reconcile", h.ConfigReconcile).Methods(http.MethodPost)

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
