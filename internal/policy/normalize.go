// Package policy normalizes the policy decisions attached to a cycle report.
package policy

import "github.com/mattjoyce/ctlstudio/internal/document"

const (
	unknownValue   = "unknown"
	invalidPayload = "invalid payload"
	noReason       = "no reason provided"
)

// Decision is an allow/deny verdict for one effect.
type Decision struct {
	Effect  string `json:"effect"`
	Target  string `json:"target"`
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Normalize converts an untyped report value into decisions. A non-list value
// yields an empty slice. Each element is normalized independently and any
// ambiguity resolves to a denial.
func Normalize(raw any) []Decision {
	list, ok := raw.([]any)
	if !ok {
		return []Decision{}
	}
	out := make([]Decision, 0, len(list))
	for _, entry := range list {
		out = append(out, normalizeEntry(entry))
	}
	return out
}

func normalizeEntry(entry any) Decision {
	doc, ok := document.AsDocument(entry)
	if !ok || doc == nil {
		return Decision{
			Effect:  unknownValue,
			Target:  unknownValue,
			Allowed: false,
			Reason:  invalidPayload,
		}
	}
	allowed, _ := doc.Bool("allowed")
	return Decision{
		Effect:  stringField(doc, "effect", unknownValue),
		Target:  stringField(doc, "target", unknownValue),
		Allowed: allowed,
		Reason:  stringField(doc, "reason", noReason),
	}
}

// stringField keeps empty strings, unlike document.StringOr; only a missing key
// or a non-string value falls back.
func stringField(doc document.Document, key, fallback string) string {
	v, ok := doc.Value(key)
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok {
		return fallback
	}
	return s
}

// Summary counts allowed and denied decisions.
type Summary struct {
	Allowed int
	Denied  int
}

// Summarize tallies decisions.
func Summarize(decisions []Decision) Summary {
	var s Summary
	for _, d := range decisions {
		if d.Allowed {
			s.Allowed++
		} else {
			s.Denied++
		}
	}
	return s
}
