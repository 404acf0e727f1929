// Package jsonx recovers JSON objects from free-form model output.
package jsonx

import (
	"strings"

	"github.com/goccy/go-json"
)

// ExtractObject returns the first JSON object found in text.
//
// Strategies, in order:
//  1. The whole text parses as an object.
//  2. The body of a ```json (or bare ```) fence parses as an object.
//  3. A balanced-brace scan, aware of strings and escapes, yields a parsable
//     object. The fence body is scanned first, then the whole text.
//
// It returns false when no strategy succeeds. It never panics.
func ExtractObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	if obj, ok := parseObject(text); ok {
		return obj, true
	}
	if body, ok := fenced(text); ok {
		if obj, ok := parseObject(body); ok {
			return obj, true
		}
		if obj, ok := scan(body); ok {
			return obj, true
		}
	}
	return scan(text)
}

// scan tries every balanced-brace candidate in text, left to right.
func scan(text string) (map[string]any, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchBrace(text, start); ok {
			if obj, ok := parseObject(text[start : end+1]); ok {
				return obj, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// Decode extracts the first object in text and decodes it into v.
func Decode(text string, v any) bool {
	obj, ok := ExtractObject(text)
	if !ok {
		return false
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// fenced returns the body of the first markdown code fence in text.
func fenced(text string) (string, bool) {
	open := strings.Index(text, "```")
	if open < 0 {
		return "", false
	}
	rest := text[open+3:]
	// Drop the info string ("json", "JSON", ...) up to the end of the line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(strings.TrimPrefix(rest, "json"), "JSON")
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return strings.TrimSpace(rest), true
	}
	return strings.TrimSpace(rest[:end]), true
}

// matchBrace returns the index of the '}' closing the '{' at start.
func matchBrace(s string, start int) (int, bool) {
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
				return i, true
			}
		}
	}
	return 0, false
}
