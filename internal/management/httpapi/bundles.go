package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/bundle"
)

// BundlesExport handles POST /bundles/export: snapshots every wall, source,
// and currently-active layout, signing the payload when an HMAC secret is
// configured.
func (h *Handlers) BundlesExport(w http.ResponseWriter, r *http.Request) {
	walls, err := h.walls.List(r.Context())
	if err != nil {
		h.logger.Error("bundle export: list walls failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to export bundle"))
		return
	}
	sources, err := h.sources.List(r.Context())
	if err != nil {
		h.logger.Error("bundle export: list sources failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to export bundle"))
		return
	}
	layouts, err := h.layouts.Active(r.Context())
	if err != nil {
		h.logger.Error("bundle export: list active layouts failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to export bundle"))
		return
	}

	export := bundle.Export{Walls: walls, Sources: sources, ActiveLayouts: layouts}
	payload, err := exportToMap(export)
	if err != nil {
		h.logger.Error("bundle export: encode payload failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to export bundle"))
		return
	}

	body := map[string]any{"payload": payload}
	if h.signer.Enabled() {
		hmacHex, err := h.signer.Sign(payload)
		if err != nil {
			h.logger.Error("bundle export: sign payload failed", "error", err)
			apierrors.Write(w, apierrors.InternalError("failed to export bundle"))
			return
		}
		body["hmac_hex"] = hmacHex
	}

	if err := h.audit(r, audit.Draft{
		Action: "bundles.export", Actor: actorFor(r), ObjectType: "bundle", ObjectID: "export",
		Details: map[string]any{"walls": len(walls), "sources": len(sources), "active_layouts": len(layouts)},
	}); err != nil {
		h.logger.Error("audit bundles.export failed", "error", err)
	}
	writeJSON(w, http.StatusOK, body)
}

// BundlesImport handles POST /bundles/import. Import is staged, not
// applied: it validates the ring and, when a secret is configured, the
// HMAC signature, then records the staged payload to the audit chain
// without touching the database. A separate apply step (out of scope for
// this service; see cmd/bundlectl) performs the actual rollout.
func (h *Handlers) BundlesImport(w http.ResponseWriter, r *http.Request) {
	var body bundleImportRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid request body"))
		return
	}

	ring := bundle.Ring(body.Ring)
	if !bundle.ValidRing(ring) {
		apierrors.Write(w, apierrors.ValidationError("ring must be one of dev, test, prod"))
		return
	}

	if h.signer.Enabled() {
		ok, err := h.signer.Verify(body.Payload, body.HMACHex)
		if err != nil {
			h.logger.Error("bundle import: verify hmac failed", "error", err)
			apierrors.Write(w, apierrors.InternalError("failed to verify bundle signature"))
			return
		}
		if !ok {
			apierrors.Write(w, apierrors.ValidationError("bundle signature mismatch"))
			return
		}
	}

	if err := h.audit(r, audit.Draft{
		Action: "bundles.import.stage", Actor: actorFor(r), ObjectType: "bundle", ObjectID: string(ring),
		Details: map[string]any{"ring": ring, "payload": body.Payload},
	}); err != nil {
		h.logger.Error("audit bundles.import.stage failed", "error", err)
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"staged": true, "ring": ring})
}

// exportToMap round-trips export through JSON to get the plain
// map[string]any shape bundle.Signer expects, since its canonical-JSON
// hashing operates on untyped values rather than struct tags.
func exportToMap(export bundle.Export) (map[string]any, error) {
	raw, err := json.Marshal(export)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
