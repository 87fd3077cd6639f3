// Package condition implements the pure condition-tree evaluator used by the
// policy engine. A tree combines individual conditions with all (AND),
// any (OR) and none (NOR) semantics; each condition addresses a dot-path
// field in a flattened JSON context document and applies one comparator,
// optionally negated.
//
// Evaluation is side-effect free. Field paths are resolved with gjson, so
// nested maps and arrays in the context are addressable with the usual
// "a.b.0.c" syntax. A path that resolves to nothing makes exists/not_exists
// meaningful and every other comparator false.
package condition

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Comparator names the supported condition operators.
type Comparator string

const (
	// Contains matches when the field's string form contains the value.
	Contains Comparator = "contains"
	// Regex matches the field against the value as a regular expression.
	Regex Comparator = "regex"
	// Equals compares for equality; strings case-insensitively unless
	// CaseSensitive is set, numbers numerically.
	Equals Comparator = "equals"
	// StartsWith matches a string prefix.
	StartsWith Comparator = "starts_with"
	// EndsWith matches a string suffix.
	EndsWith Comparator = "ends_with"
	// GreaterThan compares numerically.
	GreaterThan Comparator = "greater_than"
	// LessThan compares numerically.
	LessThan Comparator = "less_than"
	// Between matches min <= field <= max, with Value holding [min, max].
	Between Comparator = "between"
	// In matches when the field equals any element of the value list.
	In Comparator = "in"
	// NotIn matches when the field equals no element of the value list.
	NotIn Comparator = "not_in"
	// Exists matches when the field path resolves to a value.
	Exists Comparator = "exists"
	// NotExists matches when the field path resolves to nothing.
	NotExists Comparator = "not_exists"
)

// Condition is one leaf check: a field path, a comparator and a comparison
// value. Negate inverts the result after the comparator is applied.
type Condition struct {
	Field         string     `json:"field" yaml:"field"`
	Type          Comparator `json:"type" yaml:"type"`
	Value         any        `json:"value,omitempty" yaml:"value,omitempty"`
	CaseSensitive bool       `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
	Negate        bool       `json:"negate,omitempty" yaml:"negate,omitempty"`
}

// Tree groups conditions. All groups must hold simultaneously; an absent or
// empty group is vacuously true (none: no member may match).
type Tree struct {
	All  []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any  []Condition `json:"any,omitempty" yaml:"any,omitempty"`
	None []Condition `json:"none,omitempty" yaml:"none,omitempty"`
}

// IsZero reports whether the tree has no conditions at all.
func (t Tree) IsZero() bool {
	return len(t.All) == 0 && len(t.Any) == 0 && len(t.None) == 0
}

// Document marshals a context map into the JSON document evaluated against.
// A marshal failure yields an empty document rather than an error; the
// evaluator treats every field as absent in that case.
func Document(context map[string]any) []byte {
	raw, err := json.Marshal(context)
	if err != nil {
		return []byte("{}")
	}
	return raw
}

// Evaluate applies the tree to a JSON document produced by Document.
func Evaluate(t Tree, doc []byte) bool {
	for _, c := range t.All {
		if !Check(c, doc) {
			return false
		}
	}
	if len(t.Any) > 0 {
		matched := false
		for _, c := range t.Any {
			if Check(c, doc) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, c := range t.None {
		if Check(c, doc) {
			return false
		}
	}
	return true
}

// Check evaluates a single condition against the document.
func Check(c Condition, doc []byte) bool {
	res := gjson.GetBytes(doc, c.Field)
	matched := apply(c, res)
	if c.Negate {
		return !matched
	}
	return matched
}

func apply(c Condition, res gjson.Result) bool {
	switch c.Type {
	case Exists:
		return res.Exists()
	case NotExists:
		return !res.Exists()
	}

	// Every remaining comparator requires a resolved field.
	if !res.Exists() {
		return false
	}

	switch c.Type {
	case Contains:
		field, want := c.fold(res.String()), c.fold(stringify(c.Value))
		return strings.Contains(field, want)
	case Regex:
		re, err := regexp.Compile(stringify(c.Value))
		if err != nil {
			return false
		}
		return re.MatchString(res.String())
	case Equals:
		return c.equals(res, c.Value)
	case StartsWith:
		return strings.HasPrefix(c.fold(res.String()), c.fold(stringify(c.Value)))
	case EndsWith:
		return strings.HasSuffix(c.fold(res.String()), c.fold(stringify(c.Value)))
	case GreaterThan:
		want, ok := toFloat(c.Value)
		return ok && res.Type == gjson.Number && res.Float() > want
	case LessThan:
		want, ok := toFloat(c.Value)
		return ok && res.Type == gjson.Number && res.Float() < want
	case Between:
		bounds := toList(c.Value)
		if len(bounds) != 2 || res.Type != gjson.Number {
			return false
		}
		min, okMin := toFloat(bounds[0])
		max, okMax := toFloat(bounds[1])
		return okMin && okMax && res.Float() >= min && res.Float() <= max
	case In:
		return c.inList(res, toList(c.Value))
	case NotIn:
		return !c.inList(res, toList(c.Value))
	default:
		return false
	}
}

// fold lowercases unless the condition is case-sensitive.
func (c Condition) fold(s string) string {
	if c.CaseSensitive {
		return s
	}
	return strings.ToLower(s)
}

func (c Condition) equals(res gjson.Result, value any) bool {
	if want, ok := toFloat(value); ok && res.Type == gjson.Number {
		return res.Float() == want
	}
	if want, ok := value.(bool); ok {
		return (res.Type == gjson.True || res.Type == gjson.False) && res.Bool() == want
	}
	return c.fold(res.String()) == c.fold(stringify(value))
}

func (c Condition) inList(res gjson.Result, list []any) bool {
	for _, item := range list {
		if c.equals(res, item) {
			return true
		}
	}
	return false
}

func toList(v any) []any {
	switch list := v.(type) {
	case []any:
		return list
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.Trim(string(raw), `"`)
	}
}
