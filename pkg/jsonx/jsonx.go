// Package jsonx extracts JSON objects from free-form model output.
package jsonx

import "encoding/json"

// Extract attempts to pull a JSON object out of content that may wrap it in
// markdown fences or surrounding prose. It returns "" when no valid object
// can be found.
func Extract(content string) string {
	// Try the entire content first.
	if IsValid(content) {
		return content
	}

	// Find the first opening brace.
	start := -1
	for i, c := range content {
		if c == '{' {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	// Find the matching closing brace.
	depth := 0
	end := -1
	for i := start; i < len(content); i++ {
		switch content[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i + 1
			}
		}
		if end != -1 {
			break
		}
	}
	if end == -1 {
		return ""
	}

	if extracted := content[start:end]; IsValid(extracted) {
		return extracted
	}
	return ""
}

// IsValid reports whether s parses as JSON.
func IsValid(s string) bool {
	var js json.RawMessage
	return json.Unmarshal([]byte(s), &js) == nil
}

// Truncate shortens s to maxLen for safe logging.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
