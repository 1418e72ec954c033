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

func layoutID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ListLayouts handles GET /layouts?wall_id=.
func (h *Handlers) ListLayouts(w http.ResponseWriter, r *http.Request) {
	wallIDStr := r.URL.Query().Get("wall_id")
	if wallIDStr == "" {
		apierrors.Write(w, apierrors.ValidationError("wall_id query parameter is required"))
		return
	}
	wid, err := strconv.ParseInt(wallIDStr, 10, 64)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid wall_id"))
		return
	}
	layouts, err := h.layouts.ListByWall(r.Context(), wid)
	if err != nil {
		h.logger.Error("list layouts failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to list layouts"))
		return
	}
	writeJSON(w, http.StatusOK, layouts)
}

// GetLayout handles GET /layouts/{id}.
func (h *Handlers) GetLayout(w http.ResponseWriter, r *http.Request) {
	id, err := layoutID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid layout id"))
		return
	}
	layout, err := h.layouts.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("layout"))
		return
	}
	if err != nil {
		h.logger.Error("get layout failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to get layout"))
		return
	}
	writeJSON(w, http.StatusOK, layout)
}

// CreateLayout handles POST /layouts. Version assignment and the
// deactivate-siblings swap happen inside LayoutRepository.Create's
// transaction.
func (h *Handlers) CreateLayout(w http.ResponseWriter, r *http.Request) {
	var body layoutIn
	if apiErr := decodeAndValidate(r, &body); apiErr != nil {
		apierrors.Write(w, apiErr)
		return
	}
	layout := body.toDomain()
	layout.CreatedBy = actorFor(r)

	created, err := h.layouts.Create(r.Context(), layout)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("wall"))
		return
	}
	if err != nil {
		h.logger.Error("create layout failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to create layout"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "layouts.create", Actor: actorFor(r), ObjectType: "layout",
		ObjectID: strconv.FormatInt(created.ID, 10), Details: layoutDetails(created),
	}); err != nil {
		h.logger.Error("audit layouts.create failed", "error", err)
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateLayout handles PUT /layouts/{id}. It never renumbers version or
// moves the layout to a different wall's version sequence — wall_id and
// version are immutable after creation.
func (h *Handlers) UpdateLayout(w http.ResponseWriter, r *http.Request) {
	id, err := layoutID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid layout id"))
		return
	}
	existing, err := h.layouts.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("layout"))
		return
	}
	if err != nil {
		h.logger.Error("get layout failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to get layout"))
		return
	}

	var body layoutIn
	if apiErr := decodeAndValidate(r, &body); apiErr != nil {
		apierrors.Write(w, apiErr)
		return
	}
	layout := body.toDomain()
	layout.ID = id
	layout.Version = existing.Version
	layout.CreatedBy = existing.CreatedBy
	layout.CreatedAt = existing.CreatedAt

	updated, err := h.layouts.Update(r.Context(), layout)
	if err != nil {
		h.logger.Error("update layout failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to update layout"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "layouts.update", Actor: actorFor(r), ObjectType: "layout",
		ObjectID: strconv.FormatInt(updated.ID, 10), Details: layoutDetails(updated),
	}); err != nil {
		h.logger.Error("audit layouts.update failed", "error", err)
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteLayout handles DELETE /layouts/{id}.
func (h *Handlers) DeleteLayout(w http.ResponseWriter, r *http.Request) {
	id, err := layoutID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid layout id"))
		return
	}
	if err := h.layouts.Delete(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("layout"))
		return
	} else if err != nil {
		h.logger.Error("delete layout failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to delete layout"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "layouts.delete", Actor: actorFor(r), ObjectType: "layout",
		ObjectID: strconv.FormatInt(id, 10), Details: map[string]any{},
	}); err != nil {
		h.logger.Error("audit layouts.delete failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivateLayout handles PUT /layouts/{id}/activate: the atomic swap that
// deactivates any other active layout for the same wall.
func (h *Handlers) ActivateLayout(w http.ResponseWriter, r *http.Request) {
	id, err := layoutID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid layout id"))
		return
	}
	updated, err := h.layouts.Activate(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("layout"))
		return
	}
	if err != nil {
		h.logger.Error("activate layout failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to activate layout"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "layouts.activate", Actor: actorFor(r), ObjectType: "layout",
		ObjectID: strconv.FormatInt(updated.ID, 10), Details: layoutDetails(updated),
	}); err != nil {
		h.logger.Error("audit layouts.activate failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"activated": true, "layout": updated})
}

func layoutDetails(l domain.Layout) map[string]any {
	return map[string]any{
		"wall_id": l.WallID, "name": l.Name, "version": l.Version,
		"grid_config": l.Grid, "preset_name": l.Preset, "is_active": l.Active,
	}
}
