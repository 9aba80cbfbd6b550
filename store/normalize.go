package store

import "encoding/json"

// fieldRenames maps retired field names to their current names. Applied to
// any loaded record, recursively, copying the legacy value only when the
// current field is absent. A save slot embeds world collections subject to
// the same rename rule, hence the recursion.
var fieldRenames = map[string]string{
	"monsters":        "enemies",
	"worldMonsters":   "worldEnemies",
	"libraryMonsters": "libraryEnemies",
}

// NormalizeRecord applies the field-rename pass to a raw JSON record.
// Unparseable input is returned unchanged; the caller's unmarshal reports
// the real error.
func NormalizeRecord(raw json.RawMessage) json.RawMessage {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	v = normalizeValue(v)
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for legacy, current := range fieldRenames {
			val, ok := t[legacy]
			if !ok {
				continue
			}
			if _, exists := t[current]; !exists {
				t[current] = val
			}
		}
		for k, child := range t {
			t[k] = normalizeValue(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = normalizeValue(child)
		}
		return t
	default:
		return v
	}
}
