package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doc(m map[string]any) []byte { return Document(m) }

func TestCheck_Contains(t *testing.T) {
	d := doc(map[string]any{"message": "Deploy to Production failed"})

	assert.True(t, Check(Condition{Field: "message", Type: Contains, Value: "production"}, d))
	assert.False(t, Check(Condition{Field: "message", Type: Contains, Value: "production", CaseSensitive: true}, d))
	assert.True(t, Check(Condition{Field: "message", Type: Contains, Value: "Production", CaseSensitive: true}, d))
}

func TestCheck_Regex(t *testing.T) {
	d := doc(map[string]any{"branch": "release/v1.2.3"})

	assert.True(t, Check(Condition{Field: "branch", Type: Regex, Value: `^release/v\d+\.\d+\.\d+$`}, d))
	assert.False(t, Check(Condition{Field: "branch", Type: Regex, Value: `^hotfix/`}, d))
	// Invalid pattern never matches.
	assert.False(t, Check(Condition{Field: "branch", Type: Regex, Value: `^(unclosed`}, d))
}

func TestCheck_Equals(t *testing.T) {
	d := doc(map[string]any{"env": "Staging", "count": 3, "ok": true})

	assert.True(t, Check(Condition{Field: "env", Type: Equals, Value: "staging"}, d))
	assert.False(t, Check(Condition{Field: "env", Type: Equals, Value: "staging", CaseSensitive: true}, d))
	assert.True(t, Check(Condition{Field: "count", Type: Equals, Value: 3}, d))
	assert.True(t, Check(Condition{Field: "count", Type: Equals, Value: 3.0}, d))
	assert.True(t, Check(Condition{Field: "ok", Type: Equals, Value: true}, d))
	assert.False(t, Check(Condition{Field: "ok", Type: Equals, Value: false}, d))
}

func TestCheck_PrefixSuffix(t *testing.T) {
	d := doc(map[string]any{"path": "cmd/server/main.go"})

	assert.True(t, Check(Condition{Field: "path", Type: StartsWith, Value: "cmd/"}, d))
	assert.True(t, Check(Condition{Field: "path", Type: EndsWith, Value: ".go"}, d))
	assert.False(t, Check(Condition{Field: "path", Type: StartsWith, Value: "internal/"}, d))
}

func TestCheck_NumericComparators(t *testing.T) {
	d := doc(map[string]any{"severity": 7, "label": "high"})

	assert.True(t, Check(Condition{Field: "severity", Type: GreaterThan, Value: 5}, d))
	assert.False(t, Check(Condition{Field: "severity", Type: GreaterThan, Value: 7}, d))
	assert.True(t, Check(Condition{Field: "severity", Type: LessThan, Value: 10}, d))
	assert.True(t, Check(Condition{Field: "severity", Type: Between, Value: []any{5, 10}}, d))
	assert.False(t, Check(Condition{Field: "severity", Type: Between, Value: []any{8, 10}}, d))

	// Non-numeric fields never satisfy numeric comparators.
	assert.False(t, Check(Condition{Field: "label", Type: GreaterThan, Value: 0}, d))
}

func TestCheck_InNotIn(t *testing.T) {
	d := doc(map[string]any{"env": "prod"})

	assert.True(t, Check(Condition{Field: "env", Type: In, Value: []any{"prod", "staging"}}, d))
	assert.True(t, Check(Condition{Field: "env", Type: In, Value: []string{"prod"}}, d))
	assert.False(t, Check(Condition{Field: "env", Type: In, Value: []any{"dev"}}, d))
	assert.True(t, Check(Condition{Field: "env", Type: NotIn, Value: []any{"dev", "test"}}, d))
}

func TestCheck_Existence(t *testing.T) {
	d := doc(map[string]any{"present": "x"})

	assert.True(t, Check(Condition{Field: "present", Type: Exists}, d))
	assert.False(t, Check(Condition{Field: "absent", Type: Exists}, d))
	assert.True(t, Check(Condition{Field: "absent", Type: NotExists}, d))

	// A missing field fails every other comparator.
	assert.False(t, Check(Condition{Field: "absent", Type: Contains, Value: ""}, d))
	assert.False(t, Check(Condition{Field: "absent", Type: Equals, Value: ""}, d))
}

func TestCheck_Negate(t *testing.T) {
	d := doc(map[string]any{"env": "prod"})

	assert.False(t, Check(Condition{Field: "env", Type: Equals, Value: "prod", Negate: true}, d))
	assert.True(t, Check(Condition{Field: "env", Type: Equals, Value: "dev", Negate: true}, d))
}

func TestCheck_NestedPaths(t *testing.T) {
	d := doc(map[string]any{
		"commit": map[string]any{
			"author": map[string]any{"login": "alice"},
			"files":  []any{"a.go", "b.go"},
		},
	})

	assert.True(t, Check(Condition{Field: "commit.author.login", Type: Equals, Value: "alice"}, d))
	assert.True(t, Check(Condition{Field: "commit.files.0", Type: EndsWith, Value: ".go"}, d))
	assert.True(t, Check(Condition{Field: "commit.reviewer", Type: NotExists}, d))
}

func TestEvaluate_AllAnyNone(t *testing.T) {
	d := doc(map[string]any{"x": 1, "env": "prod"})

	tree := Tree{
		All:  []Condition{{Field: "x", Type: Equals, Value: 1}},
		None: []Condition{{Field: "y", Type: Exists}},
	}
	assert.True(t, Evaluate(tree, d))

	tree.None = []Condition{{Field: "env", Type: Exists}}
	assert.False(t, Evaluate(tree, d))

	tree = Tree{
		Any: []Condition{
			{Field: "env", Type: Equals, Value: "staging"},
			{Field: "env", Type: Equals, Value: "prod"},
		},
	}
	assert.True(t, Evaluate(tree, d))

	tree.Any = []Condition{{Field: "env", Type: Equals, Value: "dev"}}
	assert.False(t, Evaluate(tree, d))
}

func TestEvaluate_EmptyTreeIsVacuouslyTrue(t *testing.T) {
	require.True(t, Tree{}.IsZero())
	assert.True(t, Evaluate(Tree{}, doc(map[string]any{"anything": 1})))
}

func TestDocument_UnmarshalableContext(t *testing.T) {
	// A context that cannot marshal yields an empty document; every field
	// is then absent.
	d := Document(map[string]any{"bad": func() {}})
	assert.False(t, Check(Condition{Field: "bad", Type: Exists}, d))
}
