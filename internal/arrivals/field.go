package arrivals

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawTrip is one untrusted trip mapping as decoded from an upstream payload.
// Any key may be missing, null or hold an unexpected type.
type RawTrip map[string]any

// String returns the first present, non-null value among keys as a trimmed
// string. Strings, numbers and booleans are coerced; nested maps, lists and
// null are treated as absent. It never fails.
func String(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := scalar(m[k]); ok && s != "" {
			return s
		}
	}
	return ""
}

// StringOr is String with a fallback for the absent case.
func StringOr(m map[string]any, def string, keys ...string) string {
	if s := String(m, keys...); s != "" {
		return s
	}
	return def
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// entries returns the list under the first key holding one, keeping only the
// elements that are mappings. A missing or malformed list yields nil.
func entries(m map[string]any, keys ...string) []map[string]any {
	for _, k := range keys {
		list, ok := m[k].([]any)
		if !ok {
			if typed, ok := m[k].([]map[string]any); ok {
				return typed
			}
			continue
		}
		out := make([]map[string]any, 0, len(list))
		for _, e := range list {
			switch em := e.(type) {
			case map[string]any:
				out = append(out, em)
			case RawTrip:
				out = append(out, em)
			}
		}
		return out
	}
	return nil
}
