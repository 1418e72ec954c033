package configauthority

import "fmt"

// validateSemantic checks invariants that JSONSchema cannot express: ID
// uniqueness within and across walls/sources, and type-specific required
// fields (tiles wall needs a grid, bigscreen wall needs a screen count).
// Mirrors config_authority.py's validate_semantic.
func validateSemantic(doc map[string]any) []string {
	var errs []string

	wallIDs := stringFieldList(doc, "walls", "id")
	sourceIDs := stringFieldList(doc, "sources", "id")

	errs = append(errs, duplicateIDErrors("wall", wallIDs)...)
	errs = append(errs, duplicateIDErrors("source", sourceIDs)...)

	overlap := intersect(wallIDs, sourceIDs)
	if len(overlap) > 0 {
		errs = append(errs, fmt.Sprintf("IDs used in both walls and sources: %v", overlap))
	}

	for _, raw := range listField(doc, "walls") {
		w, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := stringOr(w["id"], "?")
		wtype := stringOr(w["type"], "")
		if wtype == "tiles" {
			if _, ok := w["grid"]; !ok {
				errs = append(errs, fmt.Sprintf("Wall '%s': type=tiles requires 'grid'", id))
			}
		}
		if wtype == "bigscreen" {
			if _, ok := w["screens"]; !ok {
				errs = append(errs, fmt.Sprintf("Wall '%s': type=bigscreen requires 'screens'", id))
			}
		}
	}

	return errs
}

func duplicateIDErrors(kind string, ids []string) []string {
	var errs []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			errs = append(errs, fmt.Sprintf("Duplicate %s id: '%s'", kind, id))
		}
		seen[id] = true
	}
	return errs
}

func intersect(a, b []string) []string {
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	var out []string
	seen := make(map[string]bool)
	for _, v := range b {
		if set[v] && !seen[v] {
			out = append(out, v)
			seen[v] = true
		}
	}
	return out
}

func listField(doc map[string]any, key string) []any {
	v, ok := doc[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	return list
}

func stringFieldList(doc map[string]any, listKey, fieldKey string) []string {
	var out []string
	for _, raw := range listField(doc, listKey) {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, stringOr(m[fieldKey], ""))
	}
	return out
}

func stringOr(v any, fallback string) string {
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}
