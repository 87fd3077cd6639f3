// Package policy implements the declarative rule engine mapping inbound
// events to conditions and actions. Policies are data, not code: they can be
// added, removed and toggled at runtime, and loaded from YAML files.
//
// On every event the engine evaluates the enabled policies in ascending
// priority order. A policy matches when one of its event-type patterns
// matches ("category:action", trailing "*" wildcard allowed) and its
// condition tree holds against the flattened event context. Matched
// policies run their actions in order; an action failure is reported in the
// evaluation result and never stops the remaining actions or policies.
package policy

import (
	"github.com/hupe1980/agentmatrix/condition"
)

// ActionType names the built-in policy actions.
type ActionType string

const (
	// ActionTriggerAgents runs a trigger batch on the matrix.
	ActionTriggerAgents ActionType = "trigger_agents"
	// ActionCreateGate opens an approval gate.
	ActionCreateGate ActionType = "create_gate"
	// ActionBlock marks the event blocked in the evaluation result.
	ActionBlock ActionType = "block"
	// ActionNotify forwards a message to the configured notifier.
	ActionNotify ActionType = "notify"
	// ActionCustom dispatches to a registered handler by name.
	ActionCustom ActionType = "custom"
)

// GateSpec is the declarative gate configuration carried by a create_gate
// action. TimeoutMs is milliseconds to stay YAML friendly.
type GateSpec struct {
	Reason            string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Priority          string   `json:"priority,omitempty" yaml:"priority,omitempty"`
	RequiredApprovers int      `json:"required_approvers,omitempty" yaml:"required_approvers,omitempty"`
	ApproverTypes     []string `json:"approver_types,omitempty" yaml:"approver_types,omitempty"`
	AllowedApprovers  []string `json:"allowed_approvers,omitempty" yaml:"allowed_approvers,omitempty"`
	TimeoutMs         int64    `json:"timeout_ms,omitempty" yaml:"timeout_ms,omitempty"`
	Fallback          string   `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// ActionConfig is one declarative action. Only the fields relevant to its
// type are consulted.
type ActionConfig struct {
	Type ActionType `json:"type" yaml:"type"`

	// Trigger overrides the trigger kind for trigger_agents; the event
	// type is used when empty.
	Trigger string `json:"trigger,omitempty" yaml:"trigger,omitempty"`

	// Gate parameterizes create_gate.
	Gate *GateSpec `json:"gate,omitempty" yaml:"gate,omitempty"`

	// Message is the notify payload.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`

	// Handler names the registered custom handler.
	Handler string `json:"handler,omitempty" yaml:"handler,omitempty"`

	// Params is passed through to custom handlers.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// Policy is one declarative rule.
type Policy struct {
	ID       string         `json:"id" yaml:"id"`
	Name     string         `json:"name,omitempty" yaml:"name,omitempty"`
	Category string         `json:"category,omitempty" yaml:"category,omitempty"`
	Enabled  bool           `json:"enabled" yaml:"enabled"`
	// Priority orders evaluation; lower evaluates first.
	Priority int            `json:"priority" yaml:"priority"`
	Events   []string       `json:"events" yaml:"events"`
	When     condition.Tree `json:"when,omitempty" yaml:"when,omitempty"`
	Actions  []ActionConfig `json:"actions" yaml:"actions"`
}

// Result statuses for one executed action.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// ActionResult reports the outcome of one action.
type ActionResult struct {
	Type   ActionType `json:"type"`
	Result string     `json:"result"`
	Error  string     `json:"error,omitempty"`
	// GateID is set for a successful create_gate.
	GateID string `json:"gate_id,omitempty"`
	// Messages counts the batch output of a successful trigger_agents.
	Messages int `json:"messages,omitempty"`
}

// Result reports the evaluation of one matched policy.
type Result struct {
	PolicyID string         `json:"policy_id"`
	Blocked  bool           `json:"blocked,omitempty"`
	Actions  []ActionResult `json:"actions"`
}
