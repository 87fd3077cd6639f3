// Package gate implements the blocking approval workflow: gates guard
// pending actions until a quorum of approvers signs off, a single rejection
// vetoes, or the timeout fires and the configured fallback applies.
//
// A gate's status is pending until exactly one terminal transition
// (approved, rejected, timeout or escalated) occurs. The manager guards the
// transition with a compare-and-swap under its lock, so a resolution racing
// the timeout timer can never fire effects twice.
package gate

import (
	"time"

	"github.com/hupe1980/agentmatrix/core"
)

// Status is the lifecycle state of a gate. Every status except StatusPending
// is terminal.
type Status string

const (
	// StatusPending means the gate is open and collecting approvals.
	StatusPending Status = "pending"
	// StatusApproved means the approval quorum was reached.
	StatusApproved Status = "approved"
	// StatusRejected means a single valid rejection resolved the gate.
	StatusRejected Status = "rejected"
	// StatusTimeout means the timer fired with fallback reject.
	StatusTimeout Status = "timeout"
	// StatusEscalated means the timer fired with fallback escalate; the
	// gate accepts no further approvals and awaits external handling.
	StatusEscalated Status = "escalated"
)

// Terminal reports whether the status is a resolution.
func (s Status) Terminal() bool { return s != StatusPending }

// FallbackBehavior selects what happens when a gate times out while pending.
type FallbackBehavior string

const (
	// FallbackReject resolves the gate with timeout status (the default).
	FallbackReject FallbackBehavior = "reject"
	// FallbackApprove resolves the gate approved.
	FallbackApprove FallbackBehavior = "approve"
	// FallbackEscalate transitions to escalated.
	FallbackEscalate FallbackBehavior = "escalate"
)

// ApproverAny in Config.ApproverTypes admits every approver type.
const ApproverAny = "any"

// Trigger records the provenance of a gate: who asked for it and why.
type Trigger struct {
	Source  string         `json:"source"`
	Reason  string         `json:"reason"`
	Context map[string]any `json:"context,omitempty"`
}

// Config parameterizes one gate.
type Config struct {
	Priority core.Priority `json:"priority"`
	// RequiredApprovers is the approval quorum; values below 1 are lifted
	// to 1.
	RequiredApprovers int `json:"required_approvers"`
	// ApproverTypes allow-lists approver types; empty or containing "any"
	// admits every type.
	ApproverTypes []string `json:"approver_types,omitempty"`
	// AllowedApprovers optionally allow-lists specific approver ids.
	AllowedApprovers []string `json:"allowed_approvers,omitempty"`
	// Timeout bounds how long the gate may stay pending; zero disables the
	// timer.
	Timeout time.Duration `json:"timeout"`
	// Fallback applies when the timeout fires.
	Fallback FallbackBehavior `json:"fallback,omitempty"`
}

// Approval is one approver's sign-off.
type Approval struct {
	ApproverID   string    `json:"approver_id"`
	ApproverType string    `json:"approver_type"`
	Comment      string    `json:"comment,omitempty"`
	At           time.Time `json:"at"`
}

// Rejection is one approver's veto.
type Rejection struct {
	ApproverID   string    `json:"approver_id"`
	ApproverType string    `json:"approver_type"`
	Reason       string    `json:"reason,omitempty"`
	At           time.Time `json:"at"`
}

// BlockedAction is a callback bundle registered on a gate. Exactly one of
// the three callbacks fires once when the gate resolves: OnApproved for
// approved, OnRejected for rejected, OnTimeout for timeout and escalated.
// Nil callbacks are skipped.
type BlockedAction struct {
	Description string
	OnApproved  func()
	OnRejected  func()
	OnTimeout   func()
}

// Gate is a snapshot view of one approval gate as returned by the manager.
type Gate struct {
	ID         string      `json:"id"`
	Trigger    Trigger     `json:"trigger"`
	Config     Config      `json:"config"`
	Status     Status      `json:"status"`
	Approvals  []Approval  `json:"approvals"`
	Rejections []Rejection `json:"rejections"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt time.Time   `json:"resolved_at,omitempty"`
}

// Event notifies subscribers of a gate lifecycle change.
type Event struct {
	GateID string    `json:"gate_id"`
	Status Status    `json:"status"`
	At     time.Time `json:"at"`
}
