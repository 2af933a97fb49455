package ai

import (
	"encoding/json"
	"strings"
)

// ExtractJSON returns the first balanced JSON object or array in s that
// decodes cleanly. Prose and markdown fences around it are ignored.
func ExtractJSON(s string) (json.RawMessage, bool) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	for start := 0; start < len(cleaned); {
		i := strings.IndexAny(cleaned[start:], "{[")
		if i < 0 {
			return nil, false
		}
		i += start
		if candidate, ok := balancedAt(cleaned, i); ok && json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), true
		}
		start = i + 1
	}
	return nil, false
}

// balancedAt finds the outermost balanced value opening at s[start].
func balancedAt(s string, start int) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch char {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch char {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
			if depth < 0 {
				return "", false
			}
		}
	}
	return "", false
}
