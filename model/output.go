package model

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// StructuredOutput is the optional machine-readable block an agent may embed
// in its response text. Unknown shapes are never coerced: if the block fails
// validation the whole response is treated as plain text.
type StructuredOutput struct {
	MessageType       string         `json:"message_type,omitempty"`
	Confidence        float64        `json:"confidence,omitempty"`
	Severity          string         `json:"severity,omitempty"`
	Data              map[string]any `json:"data,omitempty"`
	ApprovalRequired  bool           `json:"approval_required,omitempty"`
	ApprovalReason    string         `json:"approval_reason,omitempty"`
	RequiredApprovers int            `json:"required_approvers,omitempty"`
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractJSON pulls the first JSON object out of free-form model text.
// It prefers a fenced ```json block, then falls back to the first balanced
// top-level object. The returned remainder is the text with the block
// removed. ok is false when no valid JSON object is present.
func ExtractJSON(text string) (raw string, remainder string, ok bool) {
	if m := fencedJSON.FindStringSubmatchIndex(text); m != nil {
		candidate := text[m[2]:m[3]]
		if gjson.Valid(candidate) {
			remainder = strings.TrimSpace(text[:m[0]] + text[m[1]:])
			return candidate, remainder, true
		}
	}
	if candidate, start, end := firstBalancedObject(text); candidate != "" && gjson.Valid(candidate) {
		remainder = strings.TrimSpace(text[:start] + text[end:])
		return candidate, remainder, true
	}
	return "", strings.TrimSpace(text), false
}

// ParseStructured extracts and decodes a structured output block. When no
// valid block exists the zero value is returned with ok false and callers
// must take the plain-text path.
func ParseStructured(text string) (StructuredOutput, string, bool) {
	raw, remainder, ok := ExtractJSON(text)
	if !ok {
		return StructuredOutput{}, remainder, false
	}
	var out StructuredOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return StructuredOutput{}, strings.TrimSpace(text), false
	}
	// Keep any fields the typed struct does not model.
	if data := gjson.Get(raw, "data"); !data.Exists() {
		var generic map[string]any
		if err := json.Unmarshal([]byte(raw), &generic); err == nil {
			delete(generic, "message_type")
			delete(generic, "confidence")
			delete(generic, "severity")
			delete(generic, "approval_required")
			delete(generic, "approval_reason")
			delete(generic, "required_approvers")
			if len(generic) > 0 {
				out.Data = generic
			}
		}
	}
	return out, remainder, true
}

// firstBalancedObject scans for the first top-level {...} pair, respecting
// string literals and escapes. The scan is bounded by the text length; no
// backtracking.
func firstBalancedObject(text string) (string, int, int) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", 0, 0
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
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
				return text[start : i+1], start, i + 1
			}
		}
	}
	return "", 0, 0
}
