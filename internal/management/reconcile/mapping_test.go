package reconcile

import (
	"reflect"
	"testing"

	"github.com/vitaliisemenov/videowall-controlplane/internal/management/domain"
)

func TestWallFromConfig_Tiled(t *testing.T) {
	w := wallFromConfig(ConfigWall{
		ID:         "wall-a",
		Type:       "tiles",
		Grid:       &ConfigGrid{Rows: 2, Cols: 3},
		Resolution: "3840x2160",
		Tags:       map[string]string{"room": "soc"},
	})

	if w.Kind != domain.WallTiled {
		t.Errorf("kind = %q, want tilewall", w.Kind)
	}
	if w.TileCount != 6 {
		t.Errorf("tile_count = %d, want 6", w.TileCount)
	}
	if w.Name != "wall-a" {
		t.Errorf("name = %q, want wall-a", w.Name)
	}
	want := []string{"config:wall-a", "room:soc"}
	if !reflect.DeepEqual(w.Tags, want) {
		t.Errorf("tags = %v, want %v", w.Tags, want)
	}
}

func TestWallFromConfig_BigscreenDefaultsResolution(t *testing.T) {
	w := wallFromConfig(ConfigWall{ID: "wall-b", Type: "bigscreen", Screens: 4})

	if w.Kind != domain.WallBigscreen {
		t.Errorf("kind = %q, want bigscreen", w.Kind)
	}
	if w.TileCount != 4 {
		t.Errorf("tile_count = %d, want 4", w.TileCount)
	}
	if w.Resolution != "1920x1080" {
		t.Errorf("resolution = %q, want default 1920x1080", w.Resolution)
	}
}

func TestWallFromConfig_UnknownTypeDefaultsToTiled(t *testing.T) {
	w := wallFromConfig(ConfigWall{ID: "wall-c", Type: "mystery"})
	if w.Kind != domain.WallTiled {
		t.Errorf("kind = %q, want tilewall fallback", w.Kind)
	}
}

func TestSourceFromConfig_WebRTCMapsToVDI(t *testing.T) {
	s := sourceFromConfig(ConfigSource{ID: "src-a", Type: "webrtc", Endpoint: "https://cam/1", Codec: "h265"})
	if s.Kind != domain.SourceVDI {
		t.Errorf("kind = %q, want vdi", s.Kind)
	}
	if s.Protocol != domain.ProtocolWebRTC {
		t.Errorf("protocol = %q, want webrtc", s.Protocol)
	}
	if s.Codec != "h265" {
		t.Errorf("codec = %q, want h265", s.Codec)
	}
	if s.Health != domain.HealthUnknown {
		t.Errorf("health = %q, want unknown", s.Health)
	}
}

func TestSourceFromConfig_RTSPMapsToHDMI(t *testing.T) {
	for _, typ := range []string{"rtsp", "rtp", "srt"} {
		s := sourceFromConfig(ConfigSource{ID: "src-b", Type: typ})
		if s.Kind != domain.SourceHDMI {
			t.Errorf("type %s: kind = %q, want hdmi", typ, s.Kind)
		}
		if string(s.Protocol) != typ {
			t.Errorf("type %s: protocol = %q, want %s", typ, s.Protocol, typ)
		}
	}
}

func TestSourceFromConfig_UnknownTypeDefaultsCodec(t *testing.T) {
	s := sourceFromConfig(ConfigSource{ID: "src-c", Type: "mystery"})
	if s.Protocol != domain.ProtocolOther {
		t.Errorf("protocol = %q, want other", s.Protocol)
	}
	if s.Codec != "h264" {
		t.Errorf("codec = %q, want default h264", s.Codec)
	}
}

func TestWallUnchanged(t *testing.T) {
	a := domain.Wall{Name: "w1", Kind: domain.WallTiled, TileCount: 4, Resolution: "1920x1080", Tags: []string{"config:w1"}}
	b := a
	if !wallUnchanged(a, b) {
		t.Error("identical walls should compare unchanged")
	}
	b.TileCount = 6
	if wallUnchanged(a, b) {
		t.Error("differing tile_count should compare changed")
	}
}

func TestSourceUnchanged(t *testing.T) {
	a := domain.Source{Name: "s1", Kind: domain.SourceHDMI, Protocol: domain.ProtocolSRT, EndpointURL: "srt://x", Codec: "h264", Tags: []string{"config:s1"}}
	b := a
	if !sourceUnchanged(a, b) {
		t.Error("identical sources should compare unchanged")
	}
	b.EndpointURL = "srt://y"
	if sourceUnchanged(a, b) {
		t.Error("differing endpoint should compare changed")
	}
}
