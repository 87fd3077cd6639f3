package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_FencedBlock(t *testing.T) {
	text := "Here is my analysis.\n```json\n{\"message_type\": \"concern\", \"confidence\": 0.9}\n```\nStay alert."

	raw, remainder, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"message_type": "concern", "confidence": 0.9}`, raw)
	assert.Equal(t, "Here is my analysis.\n\nStay alert.", remainder)
}

func TestExtractJSON_BareObject(t *testing.T) {
	text := `Risk assessment follows {"severity": "high", "data": {"cvss": 9.8}} end of report.`

	raw, remainder, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"severity": "high", "data": {"cvss": 9.8}}`, raw)
	assert.Contains(t, remainder, "Risk assessment follows")
	assert.Contains(t, remainder, "end of report.")
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	text := `{"note": "braces } inside { strings", "n": 1}`

	raw, _, ok := ExtractJSON(text)
	require.True(t, ok)
	assert.JSONEq(t, `{"note": "braces } inside { strings", "n": 1}`, raw)
}

func TestExtractJSON_NoObject(t *testing.T) {
	_, remainder, ok := ExtractJSON("  just prose, no structure  ")
	assert.False(t, ok)
	assert.Equal(t, "just prose, no structure", remainder)
}

func TestExtractJSON_MalformedObject(t *testing.T) {
	_, _, ok := ExtractJSON(`{"unterminated": `)
	assert.False(t, ok)
}

func TestParseStructured_TypedFields(t *testing.T) {
	text := "```json\n{\"message_type\": \"approval_request\", \"approval_required\": true, \"approval_reason\": \"prod deploy\", \"required_approvers\": 2, \"confidence\": 0.8}\n```"

	out, _, ok := ParseStructured(text)
	require.True(t, ok)
	assert.Equal(t, "approval_request", out.MessageType)
	assert.True(t, out.ApprovalRequired)
	assert.Equal(t, "prod deploy", out.ApprovalReason)
	assert.Equal(t, 2, out.RequiredApprovers)
	assert.InDelta(t, 0.8, out.Confidence, 0.001)
}

func TestParseStructured_ExtraFieldsLandInData(t *testing.T) {
	text := `{"message_type": "status", "progress": 40, "stage": "tests"}`

	out, _, ok := ParseStructured(text)
	require.True(t, ok)
	assert.Equal(t, "status", out.MessageType)
	require.NotNil(t, out.Data)
	assert.EqualValues(t, 40, out.Data["progress"])
	assert.Equal(t, "tests", out.Data["stage"])
}

func TestParseStructured_PlainText(t *testing.T) {
	out, remainder, ok := ParseStructured("nothing structured here")
	assert.False(t, ok)
	assert.Equal(t, StructuredOutput{}, out)
	assert.Equal(t, "nothing structured here", remainder)
}
