// Package parser summarises JSON documents for the catalog.
//
// The store treats payloads as opaque bytes; only the catalog looks inside
// them, and a payload that is not JSON is still catalogued by name.
package parser

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"
)

// maxBody caps the searchable text kept per document.
const maxBody = 64 << 10

// Result holds the summary of one document.
type Result struct {
	// Valid reports whether the payload is well-formed JSON.
	Valid bool
	// Kind is the JSON type of the top-level value ("object", "array", ...).
	Kind string
	// Keys are the sorted top-level keys when the value is an object.
	Keys []string
	// Title is taken from a top-level "title" or "name" string.
	Title string
	// Body is the compacted payload used for substring search.
	Body string
}

// Parse summarises data. It never fails: invalid JSON yields a Result with
// Valid set to false and the raw text as Body, with invalid UTF-8 replaced.
func Parse(data []byte) *Result {
	trimmed := bytes.TrimSpace(data)
	if !json.Valid(trimmed) {
		return &Result{Body: truncate(strings.ToValidUTF8(string(data), "\uFFFD"))}
	}

	var compact bytes.Buffer
	_ = json.Compact(&compact, trimmed)

	res := &Result{
		Valid: true,
		Kind:  kindOf(trimmed),
		Body:  truncate(compact.String()),
	}
	if res.Kind != "object" {
		return res
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return res
	}
	res.Keys = make([]string, 0, len(obj))
	for k := range obj {
		res.Keys = append(res.Keys, k)
	}
	sort.Strings(res.Keys)
	res.Title = deriveTitle(obj)
	return res
}

// kindOf classifies a valid JSON value by its first byte.
func kindOf(v []byte) string {
	switch v[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// deriveTitle returns the top-level "title" if it is a non-empty string,
// otherwise "name", otherwise empty string.
func deriveTitle(obj map[string]json.RawMessage) string {
	for _, key := range []string{"title", "name"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// truncate cuts s to at most maxBody bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxBody {
		return s
	}
	cut := maxBody
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
