// Package jsonx extracts JSON objects from model output.
//
// Models frequently wrap the plan object in markdown fences or surround it
// with commentary. Extraction is attempted in order: strip fences, parse the
// whole string, then fall back to the substring between the first '{' and
// the last '}'. Only objects are handled, and brace matching is textual, so
// unbalanced braces inside string values can defeat it; callers treat any
// failure as "not JSON" and degrade to a conversational response.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractObject finds the JSON object in response and unmarshals it into T.
func ExtractObject[T any](response string) (T, error) {
	var result T
	raw, err := extract(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, fmt.Errorf("unmarshal extracted JSON: %w", err)
	}
	return result, nil
}

// Extract returns the raw JSON object substring of response.
func Extract(response string) (string, error) {
	return extract(response)
}

func extract(response string) (string, error) {
	response = StripFences(response)

	var probe any
	if err := json.Unmarshal([]byte(response), &probe); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	if start != -1 {
		end := strings.LastIndex(response, "}")
		if end > start {
			candidate := response[start : end+1]
			if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
				return candidate, nil
			}
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON object in response: %q", preview)
}

// StripFences removes a surrounding markdown code fence, with or without a
// json language tag.
func StripFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
