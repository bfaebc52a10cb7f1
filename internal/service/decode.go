package service

import (
	"encoding/json"
)

// ExtractJSONObjects returns every top-level balanced {...} span in text, in
// order. Braces are counted without regard to JSON strings, and an opening
// brace that never closes is skipped so later objects are still found.
func ExtractJSONObjects(text string) []string {
	var objects []string
	for i := 0; i < len(text); {
		if text[i] != '{' {
			i++
			continue
		}
		end := matchingBrace(text, i)
		if end < 0 {
			i++
			continue
		}
		objects = append(objects, text[i:end+1])
		i = end + 1
	}
	return objects
}

func matchingBrace(text string, start int) int {
	depth := 0
	for j := start; j < len(text); j++ {
		switch text[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// DecodeContextTitles reads the "context" list from a JSON object. ok is
// false when the object does not parse or has no such key; non-string
// entries are ignored.
func DecodeContextTitles(object string) (titles []string, ok bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(object), &obj); err != nil {
		return nil, false
	}

	raw, found := obj["context"]
	if !found {
		return nil, false
	}

	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}

	for _, item := range items {
		if s, isString := item.(string); isString {
			titles = append(titles, s)
		}
	}
	return titles, true
}

// DecodeSelections extracts every title the model selected across all JSON
// objects in a response. Malformed objects contribute nothing.
func DecodeSelections(response string) (titles []string, malformed int) {
	for _, obj := range ExtractJSONObjects(response) {
		decoded, ok := DecodeContextTitles(obj)
		if !ok {
			malformed++
			continue
		}
		titles = append(titles, decoded...)
	}
	return titles, malformed
}
