package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/logging"
)

// gateState is the manager-owned mutable record behind a Gate snapshot.
type gateState struct {
	id         string
	trigger    Trigger
	config     Config
	status     Status
	approvals  []Approval
	rejections []Rejection
	actions    []BlockedAction
	createdAt  time.Time
	resolvedAt time.Time
	timer      core.Timer
	resolved   chan struct{}
}

// Options configures a Manager.
type Options struct {
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// Clock drives timeout timers and retention; tests inject a fake.
	Clock core.Clock
	// Retention is how long resolved gates are kept before Sweep discards
	// them.
	Retention time.Duration
	// SweepInterval is the period of the background cleanup loop; zero
	// disables the loop (Sweep can still be called directly).
	SweepInterval time.Duration
}

// Manager owns the gate table. All exported methods are safe for concurrent
// use.
type Manager struct {
	mu     sync.Mutex
	gates  map[string]*gateState
	logger logging.Logger
	clock  core.Clock

	retention time.Duration

	subsMu sync.RWMutex
	subs   []func(Event)

	sweepTimer core.Timer
	closed     bool
}

// NewManager creates a gate manager and, when SweepInterval is set, starts
// the periodic cleanup of resolved gates older than the retention window.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		Logger:        logging.NoOpLogger{},
		Clock:         core.SystemClock(),
		Retention:     time.Hour,
		SweepInterval: 5 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Manager{
		gates:     make(map[string]*gateState),
		logger:    opts.Logger,
		clock:     opts.Clock,
		retention: opts.Retention,
	}
	if opts.SweepInterval > 0 {
		m.scheduleSweep(opts.SweepInterval)
	}
	return m
}

func (m *Manager) scheduleSweep(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.sweepTimer = m.clock.AfterFunc(interval, func() {
		m.Sweep()
		m.scheduleSweep(interval)
	})
}

// Close cancels the cleanup loop and every pending gate timer. Pending gates
// are left unresolved.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.sweepTimer != nil {
		m.sweepTimer.Stop()
	}
	for _, g := range m.gates {
		if g.timer != nil {
			g.timer.Stop()
		}
	}
}

// OnGateEvent subscribes to gate lifecycle events. Callbacks fire
// synchronously on the resolving goroutine; they must not block for long.
func (m *Manager) OnGateEvent(cb func(Event)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, cb)
}

// CreateGate opens a gate and arms its timeout timer. The gate id is
// returned; use Get for a snapshot.
func (m *Manager) CreateGate(trigger Trigger, config Config) string {
	if config.RequiredApprovers < 1 {
		config.RequiredApprovers = 1
	}
	if config.Fallback == "" {
		config.Fallback = FallbackReject
	}

	g := &gateState{
		id:        core.NewID(),
		trigger:   trigger,
		config:    config,
		status:    StatusPending,
		createdAt: m.clock.Now(),
		resolved:  make(chan struct{}),
	}

	m.mu.Lock()
	m.gates[g.id] = g
	if config.Timeout > 0 {
		id := g.id
		g.timer = m.clock.AfterFunc(config.Timeout, func() { m.handleTimeout(id) })
	}
	m.mu.Unlock()

	m.logger.Info("gate created",
		"gate_id", g.id,
		"source", trigger.Source,
		"required_approvers", config.RequiredApprovers,
		"timeout", config.Timeout,
		"fallback", string(config.Fallback),
	)
	m.emit(Event{GateID: g.id, Status: StatusPending, At: g.createdAt})
	return g.id
}

// Get returns a snapshot of the gate.
func (m *Manager) Get(id string) (Gate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.gates[id]
	if !ok {
		return Gate{}, false
	}
	return g.snapshot(), true
}

// Pending returns snapshots of all unresolved gates.
func (m *Manager) Pending() []Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Gate
	for _, g := range m.gates {
		if g.status == StatusPending {
			out = append(out, g.snapshot())
		}
	}
	return out
}

// Approve records one approver's sign-off. It returns false when the gate is
// unknown or resolved, the approver type or id is not admitted, or the
// approver already voted. The gate resolves approved once the quorum is
// reached.
func (m *Manager) Approve(id string, approval Approval) bool {
	if approval.At.IsZero() {
		approval.At = m.clock.Now()
	}

	m.mu.Lock()
	g, ok := m.gates[id]
	if !ok || g.status != StatusPending || !g.admits(approval.ApproverID, approval.ApproverType) || g.hasVoted(approval.ApproverID) {
		m.mu.Unlock()
		return false
	}
	g.approvals = append(g.approvals, approval)
	quorum := len(g.approvals) >= g.config.RequiredApprovers

	var fire []BlockedAction
	if quorum {
		fire = m.resolveLocked(g, StatusApproved)
	}
	m.mu.Unlock()

	m.logger.Info("gate approval recorded", "gate_id", id, "approver", approval.ApproverID, "quorum_reached", quorum)
	if quorum {
		m.finishResolution(g, StatusApproved, fire)
	}
	return true
}

// Reject records a veto. Any single valid rejection resolves the gate
// immediately; rejection has no quorum. Returns false under the same
// validation rules as Approve.
func (m *Manager) Reject(id string, rejection Rejection) bool {
	if rejection.At.IsZero() {
		rejection.At = m.clock.Now()
	}

	m.mu.Lock()
	g, ok := m.gates[id]
	if !ok || g.status != StatusPending || !g.admits(rejection.ApproverID, rejection.ApproverType) || g.hasVoted(rejection.ApproverID) {
		m.mu.Unlock()
		return false
	}
	g.rejections = append(g.rejections, rejection)
	fire := m.resolveLocked(g, StatusRejected)
	m.mu.Unlock()

	m.logger.Info("gate rejected", "gate_id", id, "approver", rejection.ApproverID, "reason", rejection.Reason)
	m.finishResolution(g, StatusRejected, fire)
	return true
}

// RegisterAction attaches a blocked-action callback bundle to a gate. When
// the gate is already resolved the matching callback fires immediately. It
// reports whether the gate exists.
func (m *Manager) RegisterAction(id string, action BlockedAction) bool {
	m.mu.Lock()
	g, ok := m.gates[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if g.status == StatusPending {
		g.actions = append(g.actions, action)
		m.mu.Unlock()
		return true
	}
	status := g.status
	m.mu.Unlock()

	m.fireActions(id, status, []BlockedAction{action})
	return true
}

// WaitForGate blocks until the gate resolves or ctx is done and returns the
// terminal status.
func (m *Manager) WaitForGate(ctx context.Context, id string) (Status, error) {
	m.mu.Lock()
	g, ok := m.gates[id]
	if !ok {
		m.mu.Unlock()
		return "", fmt.Errorf("gate %s not found", id)
	}
	resolved := g.resolved
	m.mu.Unlock()

	select {
	case <-resolved:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return g.status, nil
}

// Sweep discards resolved gates older than the retention window and returns
// how many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.clock.Now().Add(-m.retention)

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, g := range m.gates {
		if g.status.Terminal() && g.resolvedAt.Before(cutoff) {
			delete(m.gates, id)
			removed++
		}
	}
	if removed > 0 {
		m.logger.Debug("resolved gates swept", "removed", removed)
	}
	return removed
}

// handleTimeout applies the fallback behavior when the timer fires on a
// still pending gate. The status CAS in resolveLocked makes the race against
// a concurrent Approve/Reject harmless.
func (m *Manager) handleTimeout(id string) {
	m.mu.Lock()
	g, ok := m.gates[id]
	if !ok || g.status != StatusPending {
		m.mu.Unlock()
		return
	}

	var status Status
	switch g.config.Fallback {
	case FallbackApprove:
		status = StatusApproved
	case FallbackEscalate:
		status = StatusEscalated
	default:
		status = StatusTimeout
	}
	fire := m.resolveLocked(g, status)
	m.mu.Unlock()

	m.logger.Warn("gate timed out", "gate_id", id, "fallback", string(g.config.Fallback), "status", string(status))
	m.finishResolution(g, status, fire)
}

// resolveLocked performs the single terminal transition. The caller must
// hold m.mu and must invoke finishResolution with the returned actions after
// unlocking.
func (m *Manager) resolveLocked(g *gateState, status Status) []BlockedAction {
	if g.status != StatusPending {
		return nil
	}
	g.status = status
	g.resolvedAt = m.clock.Now()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	actions := g.actions
	g.actions = nil
	close(g.resolved)
	return actions
}

// finishResolution emits the terminal event and fires blocked-action
// callbacks outside the manager lock.
func (m *Manager) finishResolution(g *gateState, status Status, actions []BlockedAction) {
	m.emit(Event{GateID: g.id, Status: status, At: m.clock.Now()})
	m.fireActions(g.id, status, actions)
}

// fireActions invokes the matching callback of each blocked action in
// registration order, isolating panics per callback.
func (m *Manager) fireActions(gateID string, status Status, actions []BlockedAction) {
	for _, action := range actions {
		var cb func()
		switch status {
		case StatusApproved:
			cb = action.OnApproved
		case StatusRejected:
			cb = action.OnRejected
		case StatusTimeout, StatusEscalated:
			cb = action.OnTimeout
		}
		if cb == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("blocked action callback panicked", "gate_id", gateID, "panic", fmt.Sprintf("%v", r))
				}
			}()
			cb()
		}()
	}
}

func (m *Manager) emit(ev Event) {
	m.subsMu.RLock()
	subs := make([]func(Event), len(m.subs))
	copy(subs, m.subs)
	m.subsMu.RUnlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("gate event subscriber panicked", "gate_id", ev.GateID, "panic", fmt.Sprintf("%v", r))
				}
			}()
			cb(ev)
		}()
	}
}

func (g *gateState) admits(approverID, approverType string) bool {
	typeOK := len(g.config.ApproverTypes) == 0
	for _, t := range g.config.ApproverTypes {
		if t == ApproverAny || t == approverType {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}
	if len(g.config.AllowedApprovers) == 0 {
		return true
	}
	for _, id := range g.config.AllowedApprovers {
		if id == approverID {
			return true
		}
	}
	return false
}

// hasVoted reports whether the approver already approved or rejected; an
// approver id may not vote twice in either direction.
func (g *gateState) hasVoted(approverID string) bool {
	for _, a := range g.approvals {
		if a.ApproverID == approverID {
			return true
		}
	}
	for _, r := range g.rejections {
		if r.ApproverID == approverID {
			return true
		}
	}
	return false
}

func (g *gateState) snapshot() Gate {
	out := Gate{
		ID:         g.id,
		Trigger:    g.trigger,
		Config:     g.config,
		Status:     g.status,
		CreatedAt:  g.createdAt,
		ResolvedAt: g.resolvedAt,
	}
	out.Approvals = make([]Approval, len(g.approvals))
	copy(out.Approvals, g.approvals)
	out.Rejections = make([]Rejection, len(g.rejections))
	copy(out.Rejections, g.rejections)
	return out
}
