package httpapi

import "net/http"

// ConfigReconcile handles POST /config/reconcile: manually triggers one
// reconciliation pass outside the background Loop's poll interval, for
// operators who don't want to wait for the next tick after a config change.
func (h *Handlers) ConfigReconcile(w http.ResponseWriter, r *http.Request) {
	summary, err := h.reconciler.ReconcileOnce(r.Context())
	if err != nil {
		h.logger.Error("manual reconcile failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reconcileTriggerResponse{
		Walls:         summary.Walls.Created + summary.Walls.Updated,
		Sources:       summary.Sources.Created + summary.Sources.Updated,
		ConfigWalls:   summary.ConfigWalls,
		ConfigSources: summary.ConfigSources,
	})
}
