package configauthority

// CodecPolicy pins the encoder used for each wall category.
type CodecPolicy struct {
	Tiles   string `json:"tiles" yaml:"tiles"`
	Mosaics string `json:"mosaics" yaml:"mosaics"`
}

// LatencyClasses bound acceptable glass-to-glass latency per traffic class.
type LatencyClasses struct {
	InteractiveMaxMS int `json:"interactive_max_ms" yaml:"interactive_max_ms"`
	BroadcastMaxMS   int `json:"broadcast_max_ms" yaml:"broadcast_max_ms"`
}

// PlatformSettings are the platform-wide knobs that apply across every wall.
type PlatformSettings struct {
	Version               string         `json:"version" yaml:"version"`
	MaxConcurrentStreams  int            `json:"max_concurrent_streams" yaml:"max_concurrent_streams"`
	CodecPolicy           CodecPolicy    `json:"codec_policy" yaml:"codec_policy"`
	LatencyClasses        LatencyClasses `json:"latency_classes" yaml:"latency_classes"`
}

// WallGrid describes a tiled wall's rows x cols layout.
type WallGrid struct {
	Rows int `json:"rows" yaml:"rows"`
	Cols int `json:"cols" yaml:"cols"`
}

// WallConfig is one declared video wall.
type WallConfig struct {
	ID             string            `json:"id" yaml:"id"`
	Type           string            `json:"type" yaml:"type"` // "tiles" | "bigscreen"
	Classification string            `json:"classification" yaml:"classification"`
	Grid           *WallGrid         `json:"grid,omitempty" yaml:"grid,omitempty"`
	Screens        int               `json:"screens" yaml:"screens"`
	Resolution     string            `json:"resolution" yaml:"resolution"`
	LatencyClass   string            `json:"latency_class" yaml:"latency_class"`
	Tags           map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// TileCount is the number of display endpoints this wall presents.
func (w WallConfig) TileCount() int {
	if w.Type == "tiles" && w.Grid != nil {
		return w.Grid.Rows * w.Grid.Cols
	}
	return w.Screens
}

// SourceConfig is one declared video source feeding the platform.
type SourceConfig struct {
	ID           string            `json:"id" yaml:"id"`
	Type         string            `json:"type" yaml:"type"` // "webrtc" | "srt" | "rtsp" | "rtp"
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Codec        string            `json:"codec" yaml:"codec"`
	Resolution   string            `json:"resolution" yaml:"resolution"`
	BitrateKbps  int               `json:"bitrate_kbps" yaml:"bitrate_kbps"`
	Tags         map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// PolicyRule is one ordered allow/deny rule evaluated by the Policy Engine.
type PolicyRule struct {
	ID          string         `json:"id" yaml:"id"`
	Effect      string         `json:"effect" yaml:"effect"` // "allow" | "deny"
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	When        []map[string]any `json:"when,omitempty" yaml:"when,omitempty"`
}

// AllowListEntry is an explicit operator/wall/source allow tuple.
type AllowListEntry struct {
	OperatorID string `json:"operator_id" yaml:"operator_id"`
	WallID     string `json:"wall_id" yaml:"wall_id"`
	SourceID   string `json:"source_id" yaml:"source_id"`
}

// PolicyConfig is the declarative policy section of the platform config.
type PolicyConfig struct {
	Taxonomy    map[string][]string `json:"taxonomy,omitempty" yaml:"taxonomy,omitempty"`
	Rules       []PolicyRule        `json:"rules,omitempty" yaml:"rules,omitempty"`
	AllowList   []AllowListEntry    `json:"allow_list,omitempty" yaml:"allow_list,omitempty"`
	DenyReason  string              `json:"deny_reason,omitempty" yaml:"deny_reason,omitempty"`
}

// DerivedMetrics are computed from the loaded config; never user-supplied.
type DerivedMetrics struct {
	TotalWalls              int                `json:"total_walls"`
	TileWalls               int                `json:"tile_walls"`
	BigscreenWalls           int                `json:"bigscreen_walls"`
	TotalTiles               int                `json:"total_tiles"`
	TotalScreens             int                `json:"total_screens"`
	TotalDisplayEndpoints    int                `json:"total_display_endpoints"`
	TotalSources             int                `json:"total_sources"`
	SourcesByType            map[string]int     `json:"sources_by_type"`
	SFURoomsNeeded           int                `json:"sfu_rooms_needed"`
	MosaicPipelinesNeeded    int                `json:"mosaic_pipelines_needed"`
	EstimatedBandwidthGbps   float64            `json:"estimated_bandwidth_gbps"`
	WorstCaseConcurrency     int                `json:"worst_case_concurrency"`
	ConcurrencyHeadroom      int                `json:"concurrency_headroom"`
	ConfigHash               string             `json:"config_hash"`
}

// computeDerivedMetrics mirrors config_authority.py's DerivedMetrics.compute:
// tile bandwidth at 6 Mbps/tile, screen bandwidth at 15 Mbps/screen, plus the
// sum of each source's own declared bitrate. Worst-case concurrency is one
// stream per display endpoint (tiles plus bigscreen screens).
func computeDerivedMetrics(platform PlatformSettings, walls []WallConfig, sources []SourceConfig, canonicalJSON []byte) DerivedMetrics {
	m := DerivedMetrics{SourcesByType: map[string]int{}}
	m.TotalWalls = len(walls)
	for _, w := range walls {
		switch w.Type {
		case "tiles":
			m.TileWalls++
			m.TotalTiles += w.TileCount()
		case "bigscreen":
			m.BigscreenWalls++
			m.TotalScreens += w.Screens
		}
	}
	m.TotalDisplayEndpoints = m.TotalTiles + m.TotalScreens
	m.TotalSources = len(sources)
	var sourceBwMbps float64
	for _, s := range sources {
		m.SourcesByType[s.Type]++
		if s.BitrateKbps > 0 {
			sourceBwMbps += float64(s.BitrateKbps) / 1000.0
		}
	}
	m.SFURoomsNeeded = m.TileWalls
	m.MosaicPipelinesNeeded = m.BigscreenWalls

	tileBw := float64(m.TotalTiles) * 6.0
	screenBw := float64(m.TotalScreens) * 15.0
	m.EstimatedBandwidthGbps = round3((tileBw + screenBw + sourceBwMbps) / 1000.0)

	m.WorstCaseConcurrency = m.TotalDisplayEndpoints
	m.ConcurrencyHeadroom = platform.MaxConcurrentStreams - m.WorstCaseConcurrency
	m.ConfigHash = sha256Hex(canonicalJSON)
	return m
}

func round3(f float64) float64 {
	const scale = 1000.0
	return float64(int64(f*scale+0.5)) / scale
}

// Snapshot is one fully loaded, validated, immutable platform configuration.
// Holder.Get returns the currently active Snapshot; a reload never mutates
// an existing Snapshot in place, it replaces the atomic pointer wholesale.
type Snapshot struct {
	Platform      PlatformSettings `json:"platform"`
	Walls         []WallConfig     `json:"walls"`
	Sources       []SourceConfig   `json:"sources"`
	Policy        PolicyConfig     `json:"policy"`
	Derived       DerivedMetrics   `json:"derived"`
	CanonicalJSON []byte           `json:"-"`
	RawYAML       string           `json:"-"`
	LoadedFrom    string           `json:"loaded_from"`
	LoadedAtUnix  int64            `json:"loaded_at"`
}

// Wall looks up a wall by declared ID.
func (s *Snapshot) Wall(id string) (WallConfig, bool) {
	for _, w := range s.Walls {
		if w.ID == id {
			return w, true
		}
	}
	return WallConfig{}, false
}

// Source looks up a source by declared ID.
func (s *Snapshot) Source(id string) (SourceConfig, bool) {
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return SourceConfig{}, false
}

// WallIDs returns every declared wall ID, in config order.
func (s *Snapshot) WallIDs() []string {
	ids := make([]string, len(s.Walls))
	for i, w := range s.Walls {
		ids[i] = w.ID
	}
	return ids
}

// SourceIDs returns every declared source ID, in config order.
func (s *Snapshot) SourceIDs() []string {
	ids := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		ids[i] = src.ID
	}
	return ids
}
