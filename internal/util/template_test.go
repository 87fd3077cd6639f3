package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("You are {{.Name}}, acting as {{.Role}}.", map[string]any{
		"Name": "sentinel",
		"Role": "security reviewer",
	})
	require.NoError(t, err)
	assert.Equal(t, "You are sentinel, acting as security reviewer.", out)
}

func TestRenderTemplate_MissingKeyIsZero(t *testing.T) {
	out, err := RenderTemplate("trigger={{.Trigger}}", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "trigger=", out)
}

func TestRenderTemplate_InvalidSyntax(t *testing.T) {
	_, err := RenderTemplate("{{.Unclosed", nil)
	assert.Error(t, err)
}

func TestRenderTemplate_NoEscaping(t *testing.T) {
	// Prompts must pass through verbatim, including characters HTML
	// templating would escape.
	out, err := RenderTemplate("compare a < b && c > d for {{.Name}}", map[string]any{"Name": "x"})
	require.NoError(t, err)
	assert.Equal(t, "compare a < b && c > d for x", out)
}
