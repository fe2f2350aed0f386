package llm

import (
	"encoding/json"
	"strings"
)

// ParseJSONObject decodes a model response into a JSON object. Strict
// parsing is tried first; if the model wrapped the object in prose or code
// fences, the largest brace-delimited span is tried as a fallback. A nil
// result means no object could be recovered.
func ParseJSONObject(raw string) map[string]any {
	raw = strings.TrimSpace(raw)

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil
	}

	out = nil
	if err := json.Unmarshal([]byte(raw[start:end+1]), &out); err != nil {
		return nil
	}
	return out
}
