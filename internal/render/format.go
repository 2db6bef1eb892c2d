// Package render turns workflow state into text for terminals.
package render

import (
	"encoding/json"
	"strconv"
	"time"
	"unicode/utf8"
)

// Placeholder is shown for absent values.
const Placeholder = "—"

const maxScalarRunes = 100

// PrettyValue renders a decoded JSON value on one line. Scalars longer than
// 100 characters are truncated with an ellipsis; objects and arrays are
// rendered as compact JSON. Nil and unencodable values render as fallback.
func PrettyValue(v any, fallback string) string {
	switch val := v.(type) {
	case nil:
		return fallback
	case string:
		return truncate(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return truncate(strconv.FormatFloat(val, 'f', -1, 64))
	case float32:
		return truncate(strconv.FormatFloat(float64(val), 'f', -1, 32))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return truncate(val.String())
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}

// Pretty is PrettyValue with the default placeholder.
func Pretty(v any) string {
	return PrettyValue(v, Placeholder)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxScalarRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxScalarRunes]) + "…"
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// FormatTime renders a timestamp string in local time, or the placeholder
// when v is not a parseable timestamp.
func FormatTime(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return Placeholder
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Local().Format("2006-01-02 15:04:05")
		}
	}
	return Placeholder
}

// FormatTimePtr is FormatTime for optional fields.
func FormatTimePtr(s *string) string {
	if s == nil {
		return Placeholder
	}
	return FormatTime(*s)
}

// Deref returns *s or the placeholder.
func Deref(s *string) string {
	if s == nil || *s == "" {
		return Placeholder
	}
	return *s
}
