package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(id string) AgentConfig {
	return AgentConfig{
		ID:       id,
		Name:     id,
		Role:     "reviewer",
		Priority: PriorityNormal,
		Triggers: []string{"on-error"},
		Enabled:  true,
	}
}

func TestAgentConfig_HasTrigger(t *testing.T) {
	cfg := testConfig("a")
	assert.True(t, cfg.HasTrigger("on-error"))
	assert.False(t, cfg.HasTrigger("on-commit"))

	cfg.Triggers = []string{TriggerAlways}
	assert.True(t, cfg.HasTrigger("on-commit"))
	assert.True(t, cfg.HasTrigger("anything"))
}

func TestAgentConfig_Attestation_Deterministic(t *testing.T) {
	a := testConfig("a")
	a.Triggers = []string{"on-error", "on-commit"}

	b := testConfig("a")
	b.Triggers = []string{"on-commit", "on-error"} // order must not matter

	assert.Equal(t, a.Attestation(), b.Attestation())
	assert.Len(t, a.Attestation(), 64)
}

func TestAgentConfig_Attestation_ChangesWithBehavior(t *testing.T) {
	a := testConfig("a")
	b := testConfig("a")
	b.SystemPrompt = "be suspicious"
	assert.NotEqual(t, a.Attestation(), b.Attestation())

	// Non-behavioral fields do not affect the digest.
	c := testConfig("a")
	c.Cooldown = time.Minute
	c.Name = "other display name"
	assert.Equal(t, a.Attestation(), c.Attestation())
}

func TestAgentInstance_BeginRun_ActsAsCAS(t *testing.T) {
	inst := NewAgentInstance(testConfig("a"))
	now := time.Now()

	require.True(t, inst.BeginRun(now))
	assert.Equal(t, StatusThinking, inst.Status())

	// Second claim must fail while the first run is in flight.
	assert.False(t, inst.BeginRun(now))

	inst.FinishRun(10*time.Millisecond, nil)
	assert.Equal(t, StatusIdle, inst.Status())
	assert.True(t, inst.BeginRun(now))
}

func TestAgentInstance_FinishRun_RecordsError(t *testing.T) {
	inst := NewAgentInstance(testConfig("a"))
	require.True(t, inst.BeginRun(time.Now()))

	inst.FinishRun(5*time.Millisecond, errors.New("inference failed"))
	assert.Equal(t, StatusError, inst.Status())
	assert.Equal(t, "inference failed", inst.LastError())

	m := inst.Metrics()
	assert.Equal(t, 1, m.Runs)
	assert.Equal(t, 1, m.Errors)

	// Error status does not remove eligibility.
	assert.True(t, inst.Eligible("on-error", time.Now().Add(time.Second)))
}

func TestAgentInstance_Eligible_Cooldown(t *testing.T) {
	cfg := testConfig("a")
	cfg.Cooldown = time.Minute
	inst := NewAgentInstance(cfg)

	start := time.Now()
	require.True(t, inst.Eligible("on-error", start))
	require.True(t, inst.BeginRun(start))
	inst.FinishRun(time.Millisecond, nil)

	assert.False(t, inst.Eligible("on-error", start.Add(30*time.Second)))
	assert.True(t, inst.Eligible("on-error", start.Add(61*time.Second)))
}

func TestAgentInstance_Eligible_DisabledAndTriggerMismatch(t *testing.T) {
	inst := NewAgentInstance(testConfig("a"))
	now := time.Now()

	assert.False(t, inst.Eligible("on-commit", now))

	inst.SetEnabled(false)
	assert.Equal(t, StatusDisabled, inst.Status())
	assert.False(t, inst.Eligible("on-error", now))
	assert.False(t, inst.BeginRun(now))

	inst.SetEnabled(true)
	assert.True(t, inst.Eligible("on-error", now))
}

func TestAgentInstance_Debit(t *testing.T) {
	cfg := testConfig("a")
	cfg.Bidding = BiddingParams{Enabled: true, Budget: 100}
	inst := NewAgentInstance(cfg)

	assert.True(t, inst.Debit(60))
	assert.InDelta(t, 40, inst.Budget(), 0.001)
	assert.False(t, inst.Debit(50))
	assert.InDelta(t, 40, inst.Budget(), 0.001)
}

func TestAgentInstance_RestoreState_ThinkingFallsBackToIdle(t *testing.T) {
	inst := NewAgentInstance(testConfig("a"))
	s := inst.Snapshot()
	s.Status = StatusThinking
	s.Budget = 42

	inst.RestoreState(s)
	assert.Equal(t, StatusIdle, inst.Status())
	assert.InDelta(t, 42, inst.Budget(), 0.001)
}

func TestPriority_Rank(t *testing.T) {
	assert.Less(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Less(t, PriorityNormal.Rank(), PriorityLow.Rank())
	assert.Less(t, PriorityLow.Rank(), PriorityBackground.Rank())
	assert.Equal(t, PriorityNormal.Rank(), Priority("bogus").Rank())
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, "security reviewer", NormalizeRole("  Security Reviewer "))
}
