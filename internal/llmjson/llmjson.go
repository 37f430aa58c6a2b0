// Package llmjson extracts the JSON object a completion model was asked to
// produce from the raw answer text, which may wrap it in code fences or prose.
package llmjson

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ExtractObject returns the first balanced top-level JSON object found in raw,
// or ok=false when none parses. String contents are brace-aware.
func ExtractObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	for start >= 0 {
		if end := matchBrace(raw, start); end > start {
			candidate := raw[start : end+1]
			if gjson.Valid(candidate) {
				return candidate, true
			}
		}
		next := strings.IndexByte(raw[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return "", false
}

func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
