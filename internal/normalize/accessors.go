package normalize

import "strconv"

// lookupAny returns the first present key, in order. Models alternate
// between camelCase and snake_case field names run to run; every lookup
// lists the shapes actually observed.
func lookupAny(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v
		}
	}
	return nil
}

func lookupMap(m map[string]any, keys ...string) map[string]any {
	if v, ok := lookupAny(m, keys...).(map[string]any); ok {
		return v
	}
	return nil
}

func lookupString(m map[string]any, keys ...string) string {
	if s, ok := lookupAny(m, keys...).(string); ok {
		return s
	}
	return ""
}

// lookupScalar is lookupString but also accepts numeric values, for fields
// the model sometimes returns as numbers (years, zip codes, phone numbers).
func lookupScalar(m map[string]any, keys ...string) string {
	return coerceString(lookupAny(m, keys...))
}

// coerceString renders a scalar as a string; non-scalars become "".
func coerceString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; render integers without the
		// trailing ".0".
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
