package testutil

import (
	"time"

	"github.com/hupe1980/agentmatrix/core"
)

// AgentConfigBuilder provides a fluent helper for constructing agent configs
// in tests. Chain only the parts you need; sensible defaults are applied.
//
// Example:
//
//	cfg := NewAgentConfigBuilder("reviewer").Priority(core.PriorityHigh).Triggers("on-error").Build()
type AgentConfigBuilder struct {
	cfg core.AgentConfig
}

// NewAgentConfigBuilder creates a builder for an enabled normal-priority
// agent listening on "always".
func NewAgentConfigBuilder(id string) *AgentConfigBuilder {
	return &AgentConfigBuilder{cfg: core.AgentConfig{
		ID:       id,
		Name:     id,
		Role:     "assistant",
		Priority: core.PriorityNormal,
		Triggers: []string{core.TriggerAlways},
		Enabled:  true,
	}}
}

// Role sets the agent role (chainable).
func (b *AgentConfigBuilder) Role(role string) *AgentConfigBuilder {
	b.cfg.Role = role
	return b
}

// Priority sets the batch ordering priority (chainable).
func (b *AgentConfigBuilder) Priority(p core.Priority) *AgentConfigBuilder {
	b.cfg.Priority = p
	return b
}

// Triggers replaces the trigger set (chainable).
func (b *AgentConfigBuilder) Triggers(triggers ...string) *AgentConfigBuilder {
	b.cfg.Triggers = triggers
	return b
}

// Cooldown sets the minimum gap between runs (chainable).
func (b *AgentConfigBuilder) Cooldown(d time.Duration) *AgentConfigBuilder {
	b.cfg.Cooldown = d
	return b
}

// Timeout sets the per-inference timeout (chainable).
func (b *AgentConfigBuilder) Timeout(d time.Duration) *AgentConfigBuilder {
	b.cfg.Timeout = d
	return b
}

// SystemPrompt sets the system prompt (chainable).
func (b *AgentConfigBuilder) SystemPrompt(p string) *AgentConfigBuilder {
	b.cfg.SystemPrompt = p
	return b
}

// Disabled marks the agent disabled (chainable).
func (b *AgentConfigBuilder) Disabled() *AgentConfigBuilder {
	b.cfg.Enabled = false
	return b
}

// Bidding configures auction participation (chainable).
func (b *AgentConfigBuilder) Bidding(budget, minBid, maxBid float64, strategy core.BiddingStrategy, priority int) *AgentConfigBuilder {
	b.cfg.Bidding = core.BiddingParams{
		Enabled:  true,
		Budget:   budget,
		MinBid:   minBid,
		MaxBid:   maxBid,
		Strategy: strategy,
		Priority: priority,
	}
	return b
}

// Build returns the assembled config.
func (b *AgentConfigBuilder) Build() core.AgentConfig { return b.cfg }

// NewTestEvent creates an event with fixed source "test".
func NewTestEvent(typ string, data map[string]any) core.Event {
	return core.NewEvent(typ, "test", data)
}
