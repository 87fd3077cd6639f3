package matrix

import (
	"sort"

	"github.com/hupe1980/agentmatrix/core"
)

// Register adds an agent to the registry, making it available for
// triggering. The call is an idempotent upsert: re-registering an existing
// id replaces the configuration while runtime state (status, metrics,
// budget, attestation) is preserved. First registration derives the config
// attestation and joins the agent to the active room.
func (m *Matrix) Register(config core.AgentConfig) *core.AgentInstance {
	m.mu.Lock()
	defer m.mu.Unlock()

	if inst, ok := m.agents[config.ID]; ok {
		inst.ApplyConfig(config)
		m.logger.Debug("agent config updated", "agent_id", config.ID)
		return inst
	}

	inst := core.NewAgentInstance(config)
	m.agents[config.ID] = inst
	m.order = append(m.order, config.ID)
	if room, ok := m.rooms[m.activeRoom]; ok {
		room.AddAgent(config.ID)
	}
	m.logger.Info("agent registered",
		"agent_id", config.ID,
		"role", config.Role,
		"priority", string(config.Priority),
		"attestation", inst.Attestation(),
	)
	return inst
}

// Agent retrieves a registered agent by id.
func (m *Matrix) Agent(id string) (*core.AgentInstance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.agents[id]
	return inst, ok
}

// Agents returns all registered agents in registration order.
func (m *Matrix) Agents() []*core.AgentInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.AgentInstance, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.agents[id])
	}
	return out
}

// SetAgentEnabled flips an agent's enable flag. It reports whether the agent
// exists.
func (m *Matrix) SetAgentEnabled(id string, enabled bool) bool {
	inst, ok := m.Agent(id)
	if !ok {
		return false
	}
	inst.SetEnabled(enabled)
	m.logger.Info("agent enable flag changed", "agent_id", id, "enabled", enabled)
	return true
}

// VerifyAttestation compares an agent's stored attestation against a digest
// freshly derived from its current config. A mismatch means the config was
// replaced since first registration. Advisory only.
func (m *Matrix) VerifyAttestation(id string) (bool, bool) {
	inst, ok := m.Agent(id)
	if !ok {
		return false, false
	}
	return inst.Config().Attestation() == inst.Attestation(), true
}

// Bidders returns the enabled agents with bidding switched on, in
// registration order. Budget eligibility is the allocator's concern.
func (m *Matrix) Bidders() []*core.AgentInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.AgentInstance, 0, len(m.order))
	for _, id := range m.order {
		inst := m.agents[id]
		if inst.Enabled() && inst.Config().Bidding.Enabled {
			out = append(out, inst)
		}
	}
	return out
}

// eligibleAgents filters and orders the batch for one trigger: enabled, not
// thinking, trigger match, cooldown elapsed; sorted by priority rank with
// registration order breaking ties.
func (m *Matrix) eligibleAgents(trigger string) []*core.AgentInstance {
	now := m.clock.Now()

	m.mu.RLock()
	selected := make([]*core.AgentInstance, 0, len(m.order))
	for _, id := range m.order {
		inst := m.agents[id]
		if inst.Eligible(trigger, now) {
			selected = append(selected, inst)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Config().Priority.Rank() < selected[j].Config().Priority.Rank()
	})
	return selected
}
