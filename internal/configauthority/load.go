package configauthority

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitaliisemenov/videowall-controlplane/internal/canonicaljson"
)

// Loader parses, schema-validates, semantically validates, and assembles a
// Snapshot from declarative platform YAML. It is safe for concurrent use;
// all state is the immutable *SchemaValidator built once at startup.
type Loader struct {
	schema *SchemaValidator
}

// NewLoader builds a Loader. schemaJSON may be nil to skip schema validation.
func NewLoader(schemaJSON []byte) (*Loader, error) {
	sv, err := NewSchemaValidator(schemaJSON)
	if err != nil {
		return nil, err
	}
	return &Loader{schema: sv}, nil
}

// Load parses yamlText into a validated Snapshot. sourcePath is recorded for
// observability only (event log, logging) and is not interpreted.
func (l *Loader) Load(yamlText string, sourcePath string) (*Snapshot, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(yamlText), &doc); err != nil {
		return nil, newConfigError([]string{fmt.Sprintf("invalid YAML: %v", err)})
	}
	if doc == nil {
		return nil, newConfigError([]string{"config must be a YAML mapping"})
	}
	doc = normalizeYAMLMaps(doc).(map[string]any)

	if errs := l.schema.Validate(doc); len(errs) > 0 {
		return nil, newConfigError(errs)
	}
	if errs := validateSemantic(doc); len(errs) > 0 {
		return nil, newConfigError(errs)
	}

	platform := parsePlatform(doc)
	walls := parseWalls(doc)
	sources := parseSources(doc)
	policy := parsePolicy(doc)

	cj, err := canonicalDocJSON(doc)
	if err != nil {
		return nil, newConfigError([]string{fmt.Sprintf("canonicalization failed: %v", err)})
	}
	derived := computeDerivedMetrics(platform, walls, sources, cj)

	if derived.WorstCaseConcurrency > platform.MaxConcurrentStreams {
		return nil, newConfigError([]string{fmt.Sprintf(
			"concurrency exceeded: %d endpoints > max_concurrent_streams=%d",
			derived.WorstCaseConcurrency, platform.MaxConcurrentStreams,
		)})
	}

	return &Snapshot{
		Platform:      platform,
		Walls:         walls,
		Sources:       sources,
		Policy:        policy,
		Derived:       derived,
		CanonicalJSON: cj,
		RawYAML:       yamlText,
		LoadedFrom:    sourcePath,
		LoadedAtUnix:  time.Now().Unix(),
	}, nil
}

// canonicalDocJSON re-marshals the already-decoded YAML document through
// encoding/json (which sorts map keys) to produce the bytes that get hashed
// into Derived.ConfigHash.
func canonicalDocJSON(doc map[string]any) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return canonicaljson.Canonicalize(raw)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// normalizeYAMLMaps returns a deep copy of a map[string]any / []any tree.
// yaml.v3 already decodes string-keyed mappings into map[string]any, so for
// ordinary config documents this is an identity copy. Mappings with
// non-string keys (map[any]any) are not converted; they are copied through
// unchanged as leaf values.
func normalizeYAMLMaps(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAMLMaps(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAMLMaps(val)
		}
		return out
	default:
		return v
	}
}

func parsePlatform(doc map[string]any) PlatformSettings {
	raw, _ := doc["platform"].(map[string]any)
	cp, _ := raw["codec_policy"].(map[string]any)
	lc, _ := raw["latency_classes"].(map[string]any)

	return PlatformSettings{
		Version:              stringOr(raw["version"], "0.0.0"),
		MaxConcurrentStreams: intOr(raw["max_concurrent_streams"], 64),
		CodecPolicy: CodecPolicy{
			Tiles:   stringOr(cp["tiles"], "h264"),
			Mosaics: stringOr(cp["mosaics"], "hevc"),
		},
		LatencyClasses: LatencyClasses{
			InteractiveMaxMS: intOr(lc["interactive_max_ms"], 500),
			BroadcastMaxMS:   intOr(lc["broadcast_max_ms"], 6000),
		},
	}
}

func parseWalls(doc map[string]any) []WallConfig {
	var out []WallConfig
	for _, raw := range listField(doc, "walls") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		w := WallConfig{
			ID:             stringOr(m["id"], ""),
			Type:           stringOr(m["type"], "tiles"),
			Classification: stringOr(m["classification"], "unclassified"),
			Screens:        intOr(m["screens"], 1),
			Resolution:     stringOr(m["resolution"], "1920x1080"),
			LatencyClass:   stringOr(m["latency_class"], "interactive"),
			Tags:           stringMap(m["tags"]),
		}
		if g, ok := m["grid"].(map[string]any); ok {
			w.Grid = &WallGrid{Rows: intOr(g["rows"], 1), Cols: intOr(g["cols"], 1)}
		}
		out = append(out, w)
	}
	return out
}

func parseSources(doc map[string]any) []SourceConfig {
	var out []SourceConfig
	for _, raw := range listField(doc, "sources") {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, SourceConfig{
			ID:          stringOr(m["id"], ""),
			Type:        stringOr(m["type"], "webrtc"),
			Endpoint:    stringOr(m["endpoint"], ""),
			Codec:       stringOr(m["codec"], ""),
			Resolution:  stringOr(m["resolution"], ""),
			BitrateKbps: intOr(m["bitrate_kbps"], 0),
			Tags:        stringMap(m["tags"]),
		})
	}
	return out
}

func parsePolicy(doc map[string]any) PolicyConfig {
	raw, _ := doc["policy"].(map[string]any)
	if raw == nil {
		return PolicyConfig{}
	}
	var rules []PolicyRule
	for _, r := range listField(raw, "rules") {
		rm, ok := r.(map[string]any)
		if !ok {
			continue
		}
		var when []map[string]any
		for _, w := range listField(rm, "when") {
			if wm, ok := w.(map[string]any); ok {
				when = append(when, wm)
			}
		}
		rules = append(rules, PolicyRule{
			ID:          stringOr(rm["id"], ""),
			Effect:      stringOr(rm["effect"], "deny"),
			Description: stringOr(rm["description"], ""),
			When:        when,
		})
	}

	var allowList []AllowListEntry
	for _, a := range listField(raw, "allow_list") {
		am, ok := a.(map[string]any)
		if !ok {
			continue
		}
		allowList = append(allowList, AllowListEntry{
			OperatorID: stringOr(am["operator_id"], ""),
			WallID:     stringOr(am["wall_id"], ""),
			SourceID:   stringOr(am["source_id"], ""),
		})
	}

	taxonomy := map[string][]string{}
	if t, ok := raw["taxonomy"].(map[string]any); ok {
		for k, v := range t {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					if s, ok := item.(string); ok {
						taxonomy[k] = append(taxonomy[k], s)
					}
				}
			}
		}
	}

	defaults, _ := raw["defaults"].(map[string]any)

	return PolicyConfig{
		Taxonomy:   taxonomy,
		Rules:      rules,
		AllowList:  allowList,
		DenyReason: stringOr(defaults["deny_reason"], "default_deny"),
	}
}

func intOr(v any, fallback int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	default:
		return fallback
	}
}

func stringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		out[k] = fmt.Sprintf("%v", val)
	}
	return out
}
