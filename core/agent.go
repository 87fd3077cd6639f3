package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
)

// Priority orders agents within a trigger batch. Lower rank runs first.
type Priority string

const (
	// PriorityCritical agents run before all others in a batch.
	PriorityCritical Priority = "critical"
	// PriorityHigh agents run after critical ones.
	PriorityHigh Priority = "high"
	// PriorityNormal is the default priority.
	PriorityNormal Priority = "normal"
	// PriorityLow agents run near the end of a batch.
	PriorityLow Priority = "low"
	// PriorityBackground agents run last.
	PriorityBackground Priority = "background"
)

// Rank returns the numeric ordering of a priority; unknown values sort
// with normal so a typo in configuration degrades gracefully.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	case PriorityBackground:
		return 4
	default:
		return 2
	}
}

// AgentStatus describes the runtime state of an agent instance.
type AgentStatus string

const (
	// StatusIdle means the agent is available for triggering.
	StatusIdle AgentStatus = "idle"
	// StatusThinking means an inference call is in flight. The status acts
	// as a lock: the scheduler never re-enters a thinking agent.
	StatusThinking AgentStatus = "thinking"
	// StatusBlocked means the agent is waiting on an approval gate.
	StatusBlocked AgentStatus = "blocked"
	// StatusError means the last run failed; the agent stays eligible for
	// future triggers subject only to its own cooldown and enable flag.
	StatusError AgentStatus = "error"
	// StatusDisabled means the agent is administratively switched off.
	StatusDisabled AgentStatus = "disabled"
)

// TriggerAlways opts an agent into every trigger kind.
const TriggerAlways = "always"

// BiddingStrategy selects how an agent computes its bid in an allocation round.
type BiddingStrategy string

const (
	// StrategyAggressive bids min(maxBid, budget*0.3).
	StrategyAggressive BiddingStrategy = "aggressive"
	// StrategyConservative always bids exactly minBid.
	StrategyConservative BiddingStrategy = "conservative"
	// StrategyAdaptive interpolates between minBid and maxBid proportional
	// to the agent's bidding priority (0-100).
	StrategyAdaptive BiddingStrategy = "adaptive"
)

// BiddingParams configures an agent's participation in resource auctions.
type BiddingParams struct {
	Enabled  bool            `json:"enabled"`
	Budget   float64         `json:"budget"`
	MinBid   float64         `json:"min_bid"`
	MaxBid   float64         `json:"max_bid"`
	Strategy BiddingStrategy `json:"strategy"`
	// Priority weights adaptive bids and settlement scoring; range 0-100.
	Priority int `json:"priority"`
}

// AgentConfig is the immutable description of an agent. Runtime state lives
// on AgentInstance; the config itself is never mutated after registration.
type AgentConfig struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Role         string        `json:"role"`
	SystemPrompt string        `json:"system_prompt"`
	Priority     Priority      `json:"priority"`
	Triggers     []string      `json:"triggers"`
	Cooldown     time.Duration `json:"cooldown"`
	Timeout      time.Duration `json:"timeout"`
	Temperature  float64       `json:"temperature"`
	MaxTokens    int           `json:"max_tokens"`
	Enabled      bool          `json:"enabled"`
	Bidding      BiddingParams `json:"bidding"`
}

// HasTrigger reports whether the agent opted into the given trigger kind,
// either explicitly or via the "always" wildcard.
func (c AgentConfig) HasTrigger(trigger string) bool {
	for _, t := range c.Triggers {
		if t == trigger || t == TriggerAlways {
			return true
		}
	}
	return false
}

// attestationPayload is the canonical shape hashed for config attestation.
// Field order is fixed and triggers are sorted so the digest is deterministic
// regardless of how the config was assembled.
type attestationPayload struct {
	ID           string   `json:"id"`
	Role         string   `json:"role"`
	SystemPrompt string   `json:"system_prompt"`
	Temperature  float64  `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
	Triggers     []string `json:"triggers"`
}

// Attestation derives a deterministic digest over the behavior-relevant parts
// of the config (role, prompt, model parameters, triggers). It supports later
// integrity comparison and is advisory only, not a security boundary.
func (c AgentConfig) Attestation() string {
	triggers := make([]string, len(c.Triggers))
	copy(triggers, c.Triggers)
	sort.Strings(triggers)

	payload := attestationPayload{
		ID:           c.ID,
		Role:         c.Role,
		SystemPrompt: c.SystemPrompt,
		Temperature:  c.Temperature,
		MaxTokens:    c.MaxTokens,
		Triggers:     triggers,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// Marshal of a plain struct cannot fail; keep the signature simple.
		raw = []byte(c.ID)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// AgentMetrics aggregates per-agent run statistics.
type AgentMetrics struct {
	Runs       int           `json:"runs"`
	Errors     int           `json:"errors"`
	AvgLatency time.Duration `json:"avg_latency"`
	Concerns   int           `json:"concerns"`
	Approvals  int           `json:"approvals"`
}

// AgentInstance wraps an AgentConfig with mutable runtime state. It is safe
// for concurrent access; the status field doubles as a re-entrancy lock via
// BeginRun/FinishRun.
type AgentInstance struct {
	mu          sync.Mutex
	config      AgentConfig
	status      AgentStatus
	lastRunAt   time.Time
	lastError   string
	budget      float64
	metrics     AgentMetrics
	attestation string
	registered  time.Time
}

// NewAgentInstance creates an instance for the given config. The bidding
// budget is copied out of the config so debits never touch the config itself.
func NewAgentInstance(config AgentConfig) *AgentInstance {
	status := StatusIdle
	if !config.Enabled {
		status = StatusDisabled
	}
	return &AgentInstance{
		config:      config,
		status:      status,
		budget:      config.Bidding.Budget,
		attestation: config.Attestation(),
		registered:  time.Now().UTC(),
	}
}

// Config returns the immutable agent configuration.
func (a *AgentInstance) Config() AgentConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config
}

// ApplyConfig replaces the configuration on a registration upsert. Runtime
// state (status, metrics, budget, attestation) is preserved.
func (a *AgentInstance) ApplyConfig(config AgentConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config = config
	if !config.Enabled && a.status != StatusThinking {
		a.status = StatusDisabled
	} else if config.Enabled && a.status == StatusDisabled {
		a.status = StatusIdle
	}
}

// Status returns the current runtime status.
func (a *AgentInstance) Status() AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// SetEnabled flips the agent between disabled and idle. A thinking agent
// keeps running; the flag takes effect when the run finishes.
func (a *AgentInstance) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.config.Enabled = enabled
	if a.status == StatusThinking {
		return
	}
	if enabled {
		a.status = StatusIdle
	} else {
		a.status = StatusDisabled
	}
}

// Enabled reports whether the agent may be triggered.
func (a *AgentInstance) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config.Enabled
}

// LastRunAt returns the start time of the most recent run.
func (a *AgentInstance) LastRunAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRunAt
}

// LastError returns the recorded message of the most recent failure.
func (a *AgentInstance) LastError() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastError
}

// Attestation returns the config digest derived at first registration.
func (a *AgentInstance) Attestation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attestation
}

// Metrics returns a copy of the aggregated run metrics.
func (a *AgentInstance) Metrics() AgentMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// Eligible reports whether the agent can be selected for the given trigger at
// the given time: enabled, not currently thinking, trigger match and cooldown
// elapsed.
func (a *AgentInstance) Eligible(trigger string, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.config.Enabled || a.status == StatusThinking {
		return false
	}
	if !a.config.HasTrigger(trigger) {
		return false
	}
	if a.config.Cooldown > 0 && !a.lastRunAt.IsZero() && now.Sub(a.lastRunAt) < a.config.Cooldown {
		return false
	}
	return true
}

// BeginRun transitions the agent into thinking, acting as a compare-and-swap
// re-entrancy guard. It returns false if the agent is already thinking or
// disabled; callers must skip the agent in that case.
func (a *AgentInstance) BeginRun(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusThinking || !a.config.Enabled {
		return false
	}
	a.status = StatusThinking
	a.lastRunAt = now
	return true
}

// FinishRun restores the agent out of thinking regardless of outcome and
// folds the run into the metrics. A nil err restores idle; a non-nil err
// sets error status and records the message.
func (a *AgentInstance) FinishRun(latency time.Duration, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := a.metrics.AvgLatency*time.Duration(a.metrics.Runs) + latency
	a.metrics.Runs++
	a.metrics.AvgLatency = total / time.Duration(a.metrics.Runs)
	if err != nil {
		a.metrics.Errors++
		a.status = StatusError
		a.lastError = err.Error()
	} else {
		a.status = StatusIdle
		a.lastError = ""
	}
	if !a.config.Enabled {
		a.status = StatusDisabled
	}
}

// SetBlocked marks the agent as waiting on an approval gate. A thinking
// agent cannot be blocked; the transition is ignored in that case.
func (a *AgentInstance) SetBlocked(blocked bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == StatusThinking {
		return
	}
	if blocked {
		a.status = StatusBlocked
	} else if a.config.Enabled {
		a.status = StatusIdle
	}
}

// RecordMessage folds a produced message into the metrics counters.
func (a *AgentInstance) RecordMessage(typ MessageType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch typ {
	case MessageConcern:
		a.metrics.Concerns++
	case MessageApprovalRequest:
		a.metrics.Approvals++
	}
}

// Budget returns the remaining bidding budget.
func (a *AgentInstance) Budget() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.budget
}

// Debit subtracts a settled bid from the remaining budget. It returns false
// without mutating when the budget cannot cover the amount.
func (a *AgentInstance) Debit(amount float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount > a.budget {
		return false
	}
	a.budget -= amount
	return true
}

// RestoreState overwrites the runtime state from a snapshot.
func (a *AgentInstance) RestoreState(s AgentSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = s.Status
	a.lastRunAt = s.LastRunAt
	a.lastError = s.LastError
	a.budget = s.Budget
	a.metrics = s.Metrics
	if s.Attestation != "" {
		a.attestation = s.Attestation
	}
	if a.status == StatusThinking {
		// A run cannot survive a restore; fall back to idle.
		a.status = StatusIdle
	}
}

// Snapshot captures config plus runtime state for the persistence boundary.
func (a *AgentInstance) Snapshot() AgentSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AgentSnapshot{
		Config:      a.config,
		Status:      a.status,
		LastRunAt:   a.lastRunAt,
		LastError:   a.lastError,
		Budget:      a.budget,
		Metrics:     a.metrics,
		Attestation: a.attestation,
	}
}

// NormalizeRole lowercases and trims an agent role for comparisons.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
