// Package deepcopy duplicates the nested map/slice structures that carry loop
// state.  Frozen snapshots must never alias live containers, so every mutable
// input is copied through these helpers at freeze and restore time.
package deepcopy

// Map returns a deep copy of m.  Nested map[string]interface{} and
// []interface{} values are copied recursively; scalars and unrecognised types
// are carried over as-is (snapshot payloads are expected to be
// JSON-compatible trees).
func Map(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = Value(v)
	}
	return out
}

// Slice returns a deep copy of s.
func Slice(s []interface{}) []interface{} {
	if s == nil {
		return nil
	}
	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = Value(v)
	}
	return out
}

// Value copies a single value, recursing into maps and slices.
func Value(v interface{}) interface{} {
	switch actual := v.(type) {
	case map[string]interface{}:
		return Map(actual)
	case []interface{}:
		return Slice(actual)
	case []string:
		return append([]string(nil), actual...)
	case map[string]string:
		out := make(map[string]string, len(actual))
		for k, s := range actual {
			out[k] = s
		}
		return out
	default:
		return v
	}
}
