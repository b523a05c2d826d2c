package template

import (
	"encoding/json"
	"strings"
)

// StripCodeFence removes a surrounding markdown code fence, if present, so
// model output like "```json\n[...]\n```" parses identically to the bare
// payload.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```JSON")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

// ExtractJSONFragment trims fences and anything outside the outermost JSON
// brackets. Returns an empty string when no JSON-looking fragment is found.
func ExtractJSONFragment(raw string) string {
	text := StripCodeFence(raw)
	if text == "" {
		return ""
	}
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "]}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// FlattenOutput walks a prior step's structured output and flattens scalar
// fields into a variable set usable to pre-fill the next step's template.
// One level of nested objects is descended; a top-level string field keyed by
// its original name wins over a deeper duplicate. Output that is not valid
// JSON after fence stripping yields an empty set, not an error, since
// pre-fill is optional.
func FlattenOutput(raw string) map[string]any {
	vars := make(map[string]any)
	fragment := ExtractJSONFragment(raw)
	if fragment == "" {
		return vars
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(fragment), &decoded); err != nil {
		return vars
	}
	// nested scalars first so top-level duplicates overwrite them
	for _, value := range decoded {
		if nested, ok := value.(map[string]any); ok {
			for name, nestedValue := range nested {
				if isScalar(nestedValue) {
					vars[name] = nestedValue
				}
			}
		}
	}
	for name, value := range decoded {
		if isScalar(value) {
			vars[name] = value
		}
	}
	return vars
}

func isScalar(value any) bool {
	switch value.(type) {
	case string, float64, bool, nil:
		return true
	default:
		return false
	}
}
