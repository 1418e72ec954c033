package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vitaliisemenov/videowall-controlplane/internal/apierrors"
	"github.com/vitaliisemenov/videowall-controlplane/internal/audit"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
	"github.com/vitaliisemenov/videowall-controlplane/internal/management/storage"
)

func sourceID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ListSources handles GET /sources.
func (h *Handlers) ListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := h.sources.List(r.Context())
	if err != nil {
		h.logger.Error("list sources failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to list sources"))
		return
	}
	writeJSON(w, http.StatusOK, sources)
}

// GetSource handles GET /sources/{id}.
func (h *Handlers) GetSource(w http.ResponseWriter, r *http.Request) {
	id, err := sourceID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid source id"))
		return
	}
	source, err := h.sources.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("source"))
		return
	}
	if err != nil {
		h.logger.Error("get source failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to get source"))
		return
	}
	writeJSON(w, http.StatusOK, source)
}

// CreateSource handles POST /sources.
func (h *Handlers) CreateSource(w http.ResponseWriter, r *http.Request) {
	var body sourceIn
	if apiErr := decodeAndValidate(r, &body); apiErr != nil {
		apierrors.Write(w, apiErr)
		return
	}
	created, err := h.sources.Create(r.Context(), body.toDomain())
	if err != nil {
		h.logger.Error("create source failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to create source"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "sources.create", Actor: actorFor(r), ObjectType: "source",
		ObjectID: strconv.FormatInt(created.ID, 10), Details: sourceDetails(created),
	}); err != nil {
		h.logger.Error("audit sources.create failed", "error", err)
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateSource handles PUT /sources/{id}.
func (h *Handlers) UpdateSource(w http.ResponseWriter, r *http.Request) {
	id, err := sourceID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid source id"))
		return
	}
	var body sourceIn
	if apiErr := decodeAndValidate(r, &body); apiErr != nil {
		apierrors.Write(w, apiErr)
		return
	}
	source := body.toDomain()
	source.ID = id
	updated, err := h.sources.Update(r.Context(), source)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("source"))
		return
	}
	if err != nil {
		h.logger.Error("update source failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to update source"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "sources.update", Actor: actorFor(r), ObjectType: "source",
		ObjectID: strconv.FormatInt(updated.ID, 10), Details: sourceDetails(updated),
	}); err != nil {
		h.logger.Error("audit sources.update failed", "error", err)
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteSource handles DELETE /sources/{id}.
func (h *Handlers) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := sourceID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid source id"))
		return
	}
	if err := h.sources.Delete(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("source"))
		return
	} else if err != nil {
		h.logger.Error("delete source failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to delete source"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "sources.delete", Actor: actorFor(r), ObjectType: "source",
		ObjectID: strconv.FormatInt(id, 10), Details: map[string]any{},
	}); err != nil {
		h.logger.Error("audit sources.delete failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func sourceDetails(s domain.Source) map[string]any {
	return map[string]any{
		"name": s.Name, "source_type": s.Kind, "protocol": s.Protocol,
		"endpoint_url": s.EndpointURL, "codec": s.Codec, "tags": s.Tags, "health_status": s.Health,
	}
}
