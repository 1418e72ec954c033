// Package domain holds the Management Service's core entities: Wall,
// Source, and Layout, plus the invariants from spec §3 (active-layout
// uniqueness, gap-free versioning, marker-tag ownership).
package domain

import "time"

// WallKind distinguishes a tiled video wall from a bigscreen output bank.
type WallKind string

const (
	WallTiled     WallKind = "tilewall"
	WallBigscreen WallKind = "bigscreen"
)

// Wall is a display surface addressed by id. Owned by the Management
// Service; created by admin request or reconciliation, deleted only by
// admin.
type Wall struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Kind       WallKind  `json:"wall_type"`
	TileCount  int       `json:"tile_count"`
	Resolution string    `json:"resolution"`
	Tags       []string  `json:"tags"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ConfigMarkerTag is the tag prefix the reconciler uses to claim ownership
// of a row. See HasMarker/MarkerFor.
const ConfigMarkerTag = "config:"

// MarkerFor returns the marker tag linking a row to a declarative config id.
func MarkerFor(configID string) string {
	return ConfigMarkerTag + configID
}

// HasMarker reports whether tags contains marker.
func HasMarker(tags []string, marker string) bool {
	for _, t := range tags {
		if t == marker {
			return true
		}
	}
	return false
}

// IsConfigManaged reports whether w carries any config:<id> marker tag —
// rows without one are operator-owned and must never be touched by the
// reconciler.
func (w Wall) IsConfigManaged() bool {
	for _, t := range w.Tags {
		if len(t) > len(ConfigMarkerTag) && t[:len(ConfigMarkerTag)] == ConfigMarkerTag {
			return true
		}
	}
	return false
}
