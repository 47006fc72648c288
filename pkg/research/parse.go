package research

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-pkgz/lgr"
)

var (
	fenceRe         = regexp.MustCompile("```(?:json)?\\s*")
	trailingCommaRe = regexp.MustCompile(`,\s*([\]}])`)
)

// ExtractJSONArray recovers a JSON array from free model output. The model is
// instructed to return a bare array but may wrap it in prose or code fences;
// this strips fences, takes the first '[' to the last ']', parses strictly,
// and on failure runs a repair pass (collapse newlines, drop trailing commas)
// before giving up with an empty list. Upstream text is best-effort model
// output, not contractually valid JSON.
func ExtractJSONArray(content string) []map[string]any {
	content = strings.TrimSpace(content)
	content = fenceRe.ReplaceAllString(content, "")

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")

	if start != -1 && end != -1 && end > start {
		jsonStr := content[start : end+1]

		var items []map[string]any
		if err := json.Unmarshal([]byte(jsonStr), &items); err == nil {
			return items
		}

		// repair pass
		jsonStr = strings.ReplaceAll(jsonStr, "\n", " ")
		jsonStr = trailingCommaRe.ReplaceAllString(jsonStr, "$1")
		if err := json.Unmarshal([]byte(jsonStr), &items); err == nil {
			return items
		}
	}

	// last resort: the whole content may already be the array
	var items []map[string]any
	if err := json.Unmarshal([]byte(content), &items); err == nil {
		return items
	}

	lgr.Printf("[WARN] could not parse JSON array from response (length %d)", len(content))
	return []map[string]any{}
}

// stringField reads a string key from a raw record, with a default
func stringField(raw map[string]any, key, fallback string) string {
	if v, ok := raw[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// firstString returns the first non-empty string among the given keys
func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
