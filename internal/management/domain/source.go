package domain

import "time"

// SourceKind is the class of video producer: virtual desktop vs. hardware
// HDMI-class feed.
type SourceKind string

const (
	SourceVDI  SourceKind = "vdi"
	SourceHDMI SourceKind = "hdmi"
)

// Protocol is the transport a Source speaks.
type Protocol string

const (
	ProtocolRTSP   Protocol = "rtsp"
	ProtocolRTP    Protocol = "rtp"
	ProtocolSRT    Protocol = "srt"
	ProtocolWebRTC Protocol = "webrtc"
	ProtocolHTTP   Protocol = "http"
	ProtocolOther  Protocol = "other"
)

// HealthState is the Source's last-observed reachability.
type HealthState string

const (
	HealthUnknown   HealthState = "unknown"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// Source is a producer of video, identified by protocol and endpoint.
type Source struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Kind        SourceKind  `json:"source_type"`
	Protocol    Protocol    `json:"protocol"`
	EndpointURL string      `json:"endpoint_url"`
	Codec       string      `json:"codec"`
	Tags        []string    `json:"tags"`
	Health      HealthState `json:"health_status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// IsConfigManaged reports whether s carries any config:<id> marker tag.
func (s Source) IsConfigManaged() bool {
	for _, t := range s.Tags {
		if len(t) > len(ConfigMarkerTag) && t[:len(ConfigMarkerTag)] == ConfigMarkerTag {
			return true
		}
	}
	return false
}
