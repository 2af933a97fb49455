package ingest

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"
)

// normalizeSpace collapses runs of whitespace into one space and trims.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// sanitizeUTF8 drops invalid byte sequences that Postgres would reject.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}

// TruncateText cuts a string to maxLen runes, appending an ellipsis if truncated.
func TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}

// valueAt resolves a key in raw. Keys containing dots walk nested objects
// ("sponsor.name"); an exact key match is preferred over a dotted walk.
func valueAt(raw map[string]any, key string) (any, bool) {
	if v, ok := raw[key]; ok {
		return v, true
	}
	if !strings.Contains(key, ".") {
		return nil, false
	}
	var cur any = raw
	for _, part := range strings.Split(key, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			if item, isItem := cur.(RawItem); isItem {
				obj = item
			} else {
				return nil, false
			}
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// textOf renders scalar-ish values as trimmed text. Objects yield nothing.
func textOf(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case json.Number:
		s = val.String()
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case []string:
		s = strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, el := range val {
			if t, ok := textOf(el); ok {
				parts = append(parts, t)
			}
		}
		s = strings.Join(parts, ", ")
	case map[string]any:
		// WordPress style {"rendered": "..."} wrappers
		if r, ok := val["rendered"]; ok {
			return textOf(r)
		}
		return "", false
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// firstText tries keys in order and returns the first non-empty text value.
func firstText(raw RawItem, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := valueAt(raw, k); ok {
			if s, ok := textOf(v); ok {
				return s, true
			}
		}
	}
	return "", false
}

// firstValue tries keys in order and returns the first non-nil value.
func firstValue(raw RawItem, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := valueAt(raw, k); ok && v != nil {
			if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}
