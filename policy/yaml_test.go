package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/agentmatrix/condition"
	"github.com/hupe1980/agentmatrix/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePolicies = `
policies:
  - id: prod-deploy-gate
    name: Production deploy gate
    category: deploy
    priority: 10
    events:
      - "deploy:requested"
    when:
      all:
        - field: env
          type: equals
          value: prod
    actions:
      - type: create_gate
        gate:
          reason: production deploys need sign-off
          required_approvers: 2
          timeout_ms: 300000
          fallback: reject
  - id: error-triage
    enabled: false
    priority: 20
    events:
      - "error:*"
    actions:
      - type: trigger_agents
        trigger: on-error
`

func TestParseYAML(t *testing.T) {
	policies, err := ParseYAML([]byte(samplePolicies))
	require.NoError(t, err)
	require.Len(t, policies, 2)

	p := policies[0]
	assert.Equal(t, "prod-deploy-gate", p.ID)
	assert.Equal(t, 10, p.Priority)
	// Missing enabled key defaults to enabled.
	assert.True(t, p.Enabled)
	require.Len(t, p.When.All, 1)
	assert.Equal(t, condition.Equals, p.When.All[0].Type)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, ActionCreateGate, p.Actions[0].Type)
	require.NotNil(t, p.Actions[0].Gate)
	assert.Equal(t, int64(300000), p.Actions[0].Gate.TimeoutMs)

	// Explicit enabled: false is respected.
	assert.False(t, policies[1].Enabled)
}

func TestParseYAML_Errors(t *testing.T) {
	_, err := ParseYAML([]byte("policies: [ {name: no-id, events: [x]} ]"))
	assert.Error(t, err)

	_, err = ParseYAML([]byte("policies: [\n  broken"))
	assert.Error(t, err)
}

func TestEngine_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePolicies), 0o600))

	gm := gate.NewManager(func(o *gate.Options) { o.SweepInterval = 0 })
	defer gm.Close()
	e := NewEngine(&fakeTrigger{}, gm)

	n, err := e.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, e.Policies(), 2)

	_, err = e.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
