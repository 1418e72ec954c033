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

func wallID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ListWalls handles GET /walls.
func (h *Handlers) ListWalls(w http.ResponseWriter, r *http.Request) {
	walls, err := h.walls.List(r.Context())
	if err != nil {
		h.logger.Error("list walls failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to list walls"))
		return
	}
	writeJSON(w, http.StatusOK, walls)
}

// GetWall handles GET /walls/{id}.
func (h *Handlers) GetWall(w http.ResponseWriter, r *http.Request) {
	id, err := wallID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid wall id"))
		return
	}
	wall, err := h.walls.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("wall"))
		return
	}
	if err != nil {
		h.logger.Error("get wall failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to get wall"))
		return
	}
	writeJSON(w, http.StatusOK, wall)
}

// CreateWall handles POST /walls.
func (h *Handlers) CreateWall(w http.ResponseWriter, r *http.Request) {
	var body wallIn
	if apiErr := decodeAndValidate(r, &body); apiErr != nil {
		apierrors.Write(w, apiErr)
		return
	}
	created, err := h.walls.Create(r.Context(), body.toDomain())
	if err != nil {
		h.logger.Error("create wall failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to create wall"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "walls.create", Actor: actorFor(r), ObjectType: "wall",
		ObjectID: strconv.FormatInt(created.ID, 10), Details: wallDetails(created),
	}); err != nil {
		h.logger.Error("audit walls.create failed", "error", err)
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateWall handles PUT /walls/{id}.
func (h *Handlers) UpdateWall(w http.ResponseWriter, r *http.Request) {
	id, err := wallID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid wall id"))
		return
	}
	var body wallIn
	if apiErr := decodeAndValidate(r, &body); apiErr != nil {
		apierrors.Write(w, apiErr)
		return
	}
	wall := body.toDomain()
	wall.ID = id
	updated, err := h.walls.Update(r.Context(), wall)
	if errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("wall"))
		return
	}
	if err != nil {
		h.logger.Error("update wall failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to update wall"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "walls.update", Actor: actorFor(r), ObjectType: "wall",
		ObjectID: strconv.FormatInt(updated.ID, 10), Details: wallDetails(updated),
	}); err != nil {
		h.logger.Error("audit walls.update failed", "error", err)
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteWall handles DELETE /walls/{id}.
func (h *Handlers) DeleteWall(w http.ResponseWriter, r *http.Request) {
	id, err := wallID(r)
	if err != nil {
		apierrors.Write(w, apierrors.ValidationError("invalid wall id"))
		return
	}
	if err := h.walls.Delete(r.Context(), id); errors.Is(err, storage.ErrNotFound) {
		apierrors.Write(w, apierrors.NotFoundError("wall"))
		return
	} else if err != nil {
		h.logger.Error("delete wall failed", "error", err)
		apierrors.Write(w, apierrors.InternalError("failed to delete wall"))
		return
	}
	if err := h.audit(r, audit.Draft{
		Action: "walls.delete", Actor: actorFor(r), ObjectType: "wall",
		ObjectID: strconv.FormatInt(id, 10), Details: map[string]any{},
	}); err != nil {
		h.logger.Error("audit walls.delete failed", "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func wallDetails(w domain.Wall) map[string]any {
	return map[string]any{
		"name": w.Name, "wall_type": w.Kind, "tile_count": w.TileCount,
		"resolution": w.Resolution, "tags": w.Tags,
	}
}
