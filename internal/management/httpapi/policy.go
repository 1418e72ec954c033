package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/apimw"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
)

type policyEvaluateBody struct {
	WallID   int64 `json:"wall_id"`
	SourceID int64 `json:"source_id"`
}

// PolicyEvaluate handles POST /policy/evaluate: forwards the request to
// the Policy Engine with the caller's own identity and roles, so the
// decision always reflects who is actually asking.
func (h *Handlers) PolicyEvaluate(w http.ResponseWriter, r *http.Request) {
	var body policyEvaluateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid request body"))
		return
	}

	u := apimw.UserFromContext(r.Context())
	decision, err := h.policy.Evaluate(r.Context(),
		strconv.FormatInt(body.WallID, 10), strconv.FormatInt(body.SourceID, 10),
		u.Subject, u.Roles, nil)
	if err != nil {
		h.logger.Error("policy evaluate failed", "error", err)
		apierrors.Write(w, apierrors.ServiceUnavailableError("policy engine unreachable"))
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// TokensSubscribe handles POST /tokens/subscribe: evaluates policy for the
// requested wall/source/tile, and on allow mints a short-lived
// stream-subscribe token. The decision is always audited, whether allowed
// or denied.
func (h *Handlers) TokensSubscribe(w http.ResponseWriter, r *http.Request) {
	var body tokenSubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid request body"))
		return
	}

	u := apimw.UserFromContext(r.Context())
	decision, err := h.policy.Evaluate(r.Context(),
		strconv.FormatInt(body.WallID, 10), strconv.FormatInt(body.SourceID, 10),
		u.Subject, u.Roles, nil)
	if err != nil {
		h.logger.Error("policy evaluate failed", "error", err)
		apierrors.Write(w, apierrors.ServiceUnavailableError("policy engine unreachable"))
		return
	}

	details := map[string]any{
		"wall_id": body.WallID, "source_id": body.SourceID, "tile_id": body.TileID,
		"allowed": decision.Allowed, "reason": decision.Reason,
	}

	if !decision.Allowed {
		if err := h.audit(r, audit.Draft{
			Action: "tokens.subscribe.deny", Actor: actorFor(r), ObjectType: "source",
			ObjectID: strconv.FormatInt(body.SourceID, 10), Details: details,
		}); err != nil {
			h.logger.Error("audit tokens.subscribe.deny failed", "error", err)
		}
		writeJSON(w, http.StatusOK, tokenSubscribeResponse{Allowed: false, Reason: decision.Reason, Token: nil})
		return
	}

	tok, err := h.minter.Mint(u.Subject, body.WallID, body.SourceID, body.TileID)
	if err != nil {
		h.logger.Error("mint stream token failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to mint stream token"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "tokens.subscribe.allow", Actor: actorFor(r), ObjectType: "source",
		ObjectID: strconv.FormatInt(body.SourceID, 10), Details: details,
	}); err != nil {
		h.logger.Error("audit tokens.subscribe.allow failed", "error", err)
	}
	writeJSON(w, http.StatusOK, tokenSubscribeResponse{Allowed: true, Reason: decision.Reason, Token: &tok})
}
