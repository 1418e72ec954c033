package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
)

// AuditQuery handles GET /audit/query. Served directly from the
// Management Service's own audit.Store rather than proxying, since this
// service appends to the same chain it's reading.
func (h *Handlers) AuditQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := audit.QueryParams{Action: q.Get("action"), Actor: q.Get("actor")}

	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("since must be RFC3339"))
			return
		}
		params.Since = t
	}
	if until := q.Get("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("until must be RFC3339"))
			return
		}
		params.Until = t
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("limit must be an integer"))
			return
		}
		params.Limit = n
	}

	events, err := h.auditLog.Query(r.Context(), params)
	if err != nil {
		h.logger.Error("audit query failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to query audit log"))
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// AuditVerify handles GET /audit/verify, proxying to the separately
// deployed Audit Service.
func (h *Handlers) AuditVerify(w http.ResponseWriter, r *http.Request) {
	lastN := 1000
	if v := r.URL.Query().Get("last_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			apierrors.Write(w, apierrors.ValidationError("last_n must be an integer"))
			return
		}
		lastN = n
	}
	raw, err := h.auditX.Verify(r.Context(), lastN)
	if err != nil {
		h.logger.Error("audit verify proxy failed", "error", err)
		apierrors.Write(w, apierrors.ServiceUnavailableError("audit service unreachable"))
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

// AuditExport handles GET /audit/export, proxying to the separately
// deployed Audit Service.
func (h *Handlers) AuditExport(w http.ResponseWriter, r *http.Request) {
	raw, err := h.auditX.Export(r.Context(), r.URL.Query().Get("since"), r.URL.Query().Get("until"))
	if err != nil {
		h.logger.Error("audit export proxy failed", "error", err)
		apierrors.Write(w, apierrors.ServiceUnavailableError("audit service unreachable"))
		return
	}
	writeJSON(w, http.StatusOK, raw)
}
