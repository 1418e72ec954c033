package reconcile

import (
	"fmt"
	"sort"

	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
)

var typeMapWall = map[string]domain.WallKind{
	"tiles":     domain.WallTiled,
	"bigscreen": domain.WallBigscreen,
}

var typeMapSource = map[string]domain.SourceKind{
	"webrtc": domain.SourceVDI,
	"srt":    domain.SourceHDMI,
	"rtsp":   domain.SourceHDMI,
	"rtp":    domain.SourceHDMI,
}

var protoMap = map[string]domain.Protocol{
	"webrtc": domain.ProtocolWebRTC,
	"srt":    domain.ProtocolSRT,
	"rtsp":   domain.ProtocolRTSP,
	"rtp":    domain.ProtocolRTP,
}

// wallFromConfig maps a Configuration Authority wall declaration to the
// Management Service's row shape, mirroring reconcile.py's _wall_to_db.
// ID/CreatedAt/UpdatedAt are left zero; callers fill them in on insert or
// carry them over from the existing row on update.
func wallFromConfig(w ConfigWall) domain.Wall {
	tileCount := w.Screens
	if w.Type == "tiles" && w.Grid != nil {
		tileCount = w.Grid.Rows * w.Grid.Cols
	}
	resolution := w.Resolution
	if resolution == "" {
		resolution = "1920x1080"
	}
	kind, ok := typeMapWall[w.Type]
	if !ok {
		kind = domain.WallTiled
	}

	tags := tagList(w.Tags)
	tags = append(tags, domain.MarkerFor(w.ID))

	return domain.Wall{
		Name:       w.ID,
		Kind:       kind,
		TileCount:  tileCount,
		Resolution: resolution,
		Tags:       sortedUnique(tags),
	}
}

// sourceFromConfig maps a Configuration Authority source declaration to the
// Management Service's row shape, mirroring reconcile.py's _source_to_db.
func sourceFromConfig(s ConfigSource) domain.Source {
	kind, ok := typeMapSource[s.Type]
	if !ok {
		kind = domain.SourceHDMI
	}
	proto, ok := protoMap[s.Type]
	if !ok {
		proto = domain.ProtocolOther
	}
	codec := s.Codec
	if codec == "" {
		codec = "h264"
	}

	tags := tagList(s.Tags)
	tags = append(tags, domain.MarkerFor(s.ID))

	return domain.Source{
		Name:        s.ID,
		Kind:        kind,
		Protocol:    proto,
		EndpointURL: s.Endpoint,
		Codec:       codec,
		Tags:        sortedUnique(tags),
		Health:      domain.HealthUnknown,
	}
}

// tagList flattens a config entity's key:value tag map into "key:value"
// strings, matching the Python prototype's [f"{k}:{v}" for k, v in tags].
func tagList(tags map[string]string) []string {
	out := make([]string, 0, len(tags))
	for k, v := range tags {
		out = append(out, fmt.Sprintf("%s:%s", k, v))
	}
	return out
}

func sortedUnique(tags []string) []string {
	set := map[string]struct{}{}
	for _, t := range tags {
		set[t] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
