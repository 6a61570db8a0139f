package audit

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// boundPayload sanitizes a payload and guarantees the encoded result
// fits in MaxJSONBytes. Oversized payloads collapse into an envelope
// carrying the original size and a preview.
func boundPayload(payload any) any {
	sanitized := sanitizeJSONValue(payload, 0)
	encoded, err := json.Marshal(sanitized)
	if err != nil {
		return map[string]any{
			"unserializable": true,
			"preview":        truncateText(fmt.Sprintf("%#v", payload), MaxJSONStringChars),
		}
	}
	if len(encoded) <= MaxJSONBytes {
		return sanitized
	}
	previewChars := MaxJSONBytes / 2
	if previewChars < 1 {
		previewChars = 1
	}
	if previewChars > MaxJSONStringChars {
		previewChars = MaxJSONStringChars
	}
	return map[string]any{
		"truncated":      true,
		"original_bytes": len(encoded),
		"preview":        truncateText(string(encoded), previewChars),
	}
}

// sanitizeJSONValue bounds one value. Values beyond MaxJSONDepth
// collapse to TruncatedValue; unknown types are round-tripped through
// JSON and sanitized as plain data.
func sanitizeJSONValue(value any, depth int) any {
	if depth >= MaxJSONDepth {
		return TruncatedValue
	}
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		return v
	case int:
		return v
	case int64:
		return v
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Sprintf("%v", v)
		}
		return v
	case string:
		return truncateText(v, MaxJSONStringChars)
	case []byte:
		return truncateText(string(v), MaxJSONStringChars)
	case map[string]any:
		return sanitizeMap(v, depth)
	case []any:
		return sanitizeList(v, depth)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return truncateText(fmt.Sprintf("%#v", v), MaxJSONStringChars)
		}
		var decoded any
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			return truncateText(string(encoded), MaxJSONStringChars)
		}
		return sanitizeJSONValue(decoded, depth+1)
	}
}

// sanitizeMap bounds keys and values, redacts sensitive keys, and keeps
// at most MaxJSONItems entries. Keys are visited in sorted order so the
// kept subset is deterministic.
func sanitizeMap(value map[string]any, depth int) map[string]any {
	keys := make([]string, 0, len(value))
	for key := range value {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(value))
	kept := 0
	for _, key := range keys {
		if kept >= MaxJSONItems {
			out["_truncated_items"] = fmt.Sprintf("%d omitted", len(value)-kept)
			break
		}
		boundedKey := truncateText(key, MaxJSONKeyChars)
		if _, sensitive := sensitiveKeys[strings.ToLower(boundedKey)]; sensitive {
			out[boundedKey] = RedactedValue
		} else {
			out[boundedKey] = sanitizeJSONValue(value[key], depth+1)
		}
		kept++
	}
	return out
}

// sanitizeList keeps at most MaxJSONItems elements and appends a
// TruncatedValue marker when elements were dropped.
func sanitizeList(items []any, depth int) []any {
	out := make([]any, 0, len(items))
	for i, item := range items {
		if i >= MaxJSONItems {
			out = append(out, TruncatedValue)
			break
		}
		out = append(out, sanitizeJSONValue(item, depth+1))
	}
	return out
}

// truncateText limits a string to maxChars characters, ending truncated
// text with a "..." marker.
func truncateText(value string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= maxChars {
		return value
	}
	const marker = "..."
	if maxChars <= len(marker) {
		return marker[:maxChars]
	}
	return string(runes[:maxChars-len(marker)]) + marker
}

// serializeJSON renders a sanitized value as text. Serialization
// failures degrade to an unserializable envelope rather than an error.
func serializeJSON(value any) string {
	encoded, err := json.Marshal(value)
	if err == nil {
		return string(encoded)
	}
	fallback := map[string]any{
		"unserializable": true,
		"preview":        truncateText(fmt.Sprintf("%#v", value), MaxJSONStringChars),
	}
	encoded, err = json.Marshal(fallback)
	if err != nil {
		return `{"unserializable": true}`
	}
	return string(encoded)
}
