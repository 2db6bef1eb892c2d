// Package document provides a loosely typed key/value document with accessors
// that report absence instead of failing.
//
// Controller reports and artifact bodies arrive as arbitrary JSON objects. All
// extraction logic in the client goes through these helpers so that a missing
// key or a value of the wrong type degrades to (zero, false) rather than an
// error.
package document

import "encoding/json"

// Document is a decoded JSON object.
type Document map[string]any

// UnmarshalJSON accepts a JSON object or null. Any other JSON value decodes to
// an empty document.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m, ok := raw.(map[string]any)
	if !ok {
		*d = nil
		return nil
	}
	*d = Document(m)
	return nil
}

// Value returns the raw value stored under key.
func (d Document) Value(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d[key]
	return v, ok
}

// String returns the string under key. Empty strings count as absent.
func (d Document) String(key string) (string, bool) {
	v, ok := d.Value(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// StringOr returns the string under key or fallback.
func (d Document) StringOr(key, fallback string) string {
	if s, ok := d.String(key); ok {
		return s
	}
	return fallback
}

// Bool returns the boolean under key.
func (d Document) Bool(key string) (bool, bool) {
	v, ok := d.Value(key)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Number returns the numeric value under key as float64.
func (d Document) Number(key string) (float64, bool) {
	v, ok := d.Value(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Map returns the nested object under key.
func (d Document) Map(key string) (Document, bool) {
	v, ok := d.Value(key)
	if !ok {
		return nil, false
	}
	return AsDocument(v)
}

// List returns the array under key.
func (d Document) List(key string) ([]any, bool) {
	v, ok := d.Value(key)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// AsDocument converts an arbitrary decoded value into a Document when it is an
// object.
func AsDocument(v any) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]any:
		return Document(m), true
	}
	return nil, false
}
