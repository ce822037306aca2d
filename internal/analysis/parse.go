package analysis

import (
	"encoding/json"
	"strings"
)

// ParseOrDefault decodes the JSON value embedded in raw into T. The second
// result is false, and fallback is returned, when raw holds no decodable
// value or validate rejects it. A nil validate accepts any value.
func ParseOrDefault[T any](raw string, validate func(T) bool, fallback T) (T, bool) {
	text := cleanJSON(raw)
	if text == "" {
		return fallback, false
	}
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return fallback, false
	}
	if validate != nil && !validate(v) {
		return fallback, false
	}
	return v, true
}

// cleanJSON extracts a JSON object or array from text that may be wrapped
// in markdown code fences or surrounding prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Take the span from the first opening bracket to its last closing
	// counterpart.
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	closing := "}"
	if text[start] == '[' {
		closing = "]"
	}
	if end := strings.LastIndex(text, closing); end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
