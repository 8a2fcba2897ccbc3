package utils

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var (
	codeBlockRe  = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ErrNoJSON is returned when no JSON object can be recovered from model output
var ErrNoJSON = errors.New("unable to parse JSON from LLM response")

// ExtractJSONObject robustly recovers a JSON object from LLM responses.
// Handles various formats:
// - Raw JSON: {"is_task": true, ...}
// - Code blocks: ```json\n{...}\n``` or ```\n{...}\n```
// - Surrounding text: "Here is the result: {...}"
func ExtractJSONObject(content string) ([]byte, error) {
	content = strings.TrimSpace(content)

	// Try direct parse first
	if isJSONObject(content) {
		return []byte(content), nil
	}

	// Try to find JSON in markdown code blocks (```json or ```)
	if matches := codeBlockRe.FindStringSubmatch(content); len(matches) > 1 {
		if inner := strings.TrimSpace(matches[1]); isJSONObject(inner) {
			return []byte(inner), nil
		}
	}

	// Try to find JSON object by looking for outermost { ... }
	if match := jsonObjectRe.FindString(content); match != "" && isJSONObject(match) {
		return []byte(match), nil
	}

	return nil, ErrNoJSON
}

func isJSONObject(s string) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &obj) == nil
}
