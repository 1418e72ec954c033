// Package httpapi exposes the Management Service over HTTP: CRUD for
// walls/sources/layouts, policy evaluation and stream token minting,
// bundle export/import, and audit proxying. Grounded on
// services/mgmt-api/app/main.py's FastAPI routes.
package httpapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
)

// validate is shared across every request body in this package. Grounded
// on the teacher's internal/api/middleware/validation.go ValidateStruct,
// which wraps the same *validator.Validate singleton.
var validate = validator.New()

// wallIn is the request body for creating or updating a wall.
type wallIn struct {
	Name       string          `json:"name" validate:"required"`
	WallType   domain.WallKind `json:"wall_type" validate:"required,oneof=tilewall bigscreen"`
	TileCount  int             `json:"tile_count" validate:"min=1"`
	Resolution string          `json:"resolution" validate:"required"`
	Tags       []string        `json:"tags"`
}

func (w wallIn) toDomain() domain.Wall {
	tags := w.Tags
	if tags == nil {
		tags = []string{}
	}
	return domain.Wall{Name: w.Name, Kind: w.WallType, TileCount: w.TileCount, Resolution: w.Resolution, Tags: tags}
}

// sourceIn is the request body for creating or updating a source.
type sourceIn struct {
	Name        string             `json:"name" validate:"required"`
	SourceType  domain.SourceKind  `json:"source_type" validate:"required,oneof=vdi hdmi"`
	Protocol    domain.Protocol    `json:"protocol" validate:"required,oneof=rtsp rtp srt webrtc http other"`
	EndpointURL string             `json:"endpoint_url" validate:"required"`
	Codec       string             `json:"codec"`
	Tags        []string           `json:"tags"`
	Health      domain.HealthState `json:"health_status" validate:"omitempty,oneof=unknown healthy unhealthy"`
}

func (s sourceIn) toDomain() domain.Source {
	tags := s.Tags
	if tags == nil {
		tags = []string{}
	}
	codec := s.Codec
	if codec == "" {
		codec = "h264"
	}
	health := s.Health
	if health == "" {
		health = domain.HealthUnknown
	}
	return domain.Source{
		Name: s.Name, Kind: s.SourceType, Protocol: s.Protocol,
		EndpointURL: s.EndpointURL, Codec: codec, Tags: tags, Health: health,
	}
}

// layoutIn is the request body for creating or updating a layout.
type layoutIn struct {
	WallID int64          `json:"wall_id" validate:"required,gt=0"`
	Name   string         `json:"name" validate:"required"`
	Grid   map[string]any `json:"grid_config"`
	Preset string         `json:"preset_name"`
	Active bool           `json:"is_active"`
}

func (l layoutIn) toDomain() domain.Layout {
	grid := l.Grid
	if grid == nil {
		grid = map[string]any{}
	}
	return domain.Layout{WallID: l.WallID, Name: l.Name, Grid: grid, Preset: l.Preset, Active: l.Active}
}

type whoAmIResponse struct {
	Subject            string   `json:"sub"`
	Roles              []string `json:"roles"`
}

type tokenSubscribeRequest struct {
	WallID   int64  `json:"wall_id"`
	SourceID int64  `json:"source_id"`
	TileID   string `json:"tile_id"`
}

type tokenSubscribeResponse struct {
	Allowed bool    `json:"allowed"`
	Reason  string  `json:"reason"`
	Token   *string `json:"token"`
}

type bundleImportRequest struct {
	Ring    string         `json:"ring"`
	Payload map[string]any `json:"payload"`
	HMACHex string         `json:"hmac_hex"`
}

type reconcileTriggerResponse struct {
	Walls         int `json:"walls_changed"`
	Sources       int `json:"sources_changed"`
	ConfigWalls   int `json:"config_walls"`
	ConfigSources int `json:"config_sources"`
}
