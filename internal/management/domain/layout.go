package domain

import "time"

// Layout is a versioned assignment of sources to positions on a wall; at
// most one layout per wall is active at any commit boundary. Grid is an
// opaque structured value (positions, source assignments) the Management
// Service doesn't interpret.
type Layout struct {
	ID        int64          `json:"id"`
	WallID    int64          `json:"wall_id"`
	Name      string         `json:"name"`
	Version   int            `json:"version"`
	Grid      map[string]any `json:"grid"`
	Preset    string         `json:"preset,omitempty"`
	Active    bool           `json:"active"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}
