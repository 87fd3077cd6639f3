package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentmatrix/condition"
	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/gate"
	"github.com/hupe1980/agentmatrix/logging"
)

// AgentTrigger is the slice of the matrix the engine calls into.
type AgentTrigger interface {
	Trigger(ctx context.Context, trigger string, tctx map[string]any) []core.Message
}

// GateCreator is the slice of the gate manager the engine calls into.
type GateCreator interface {
	CreateGate(trigger gate.Trigger, config gate.Config) string
}

// Handler is a registered custom action.
type Handler func(ctx context.Context, ev core.Event, params map[string]any) error

// Notifier receives notify action payloads.
type Notifier func(ev core.Event, message string)

// Options configures an Engine.
type Options struct {
	Logger logging.Logger
	Clock  core.Clock
	// Notifier receives notify actions; nil notifies the logger only.
	Notifier Notifier
}

// Engine evaluates policies against inbound events. Safe for concurrent use;
// policies may be added and removed while events are being handled.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]Policy

	matrix   AgentTrigger
	gates    GateCreator
	handlers map[string]Handler
	notifier Notifier

	subsMu sync.RWMutex
	subs   []func(core.Event)

	logger logging.Logger
	clock  core.Clock
}

// NewEngine creates a policy engine wired to the trigger scheduler and gate
// manager.
func NewEngine(matrix AgentTrigger, gates GateCreator, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Logger: logging.NoOpLogger{},
		Clock:  core.SystemClock(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		policies: make(map[string]Policy),
		matrix:   matrix,
		gates:    gates,
		handlers: make(map[string]Handler),
		notifier: opts.Notifier,
		logger:   opts.Logger,
		clock:    opts.Clock,
	}
}

// AddPolicy upserts a policy at runtime.
func (e *Engine) AddPolicy(p Policy) error {
	if p.ID == "" {
		return fmt.Errorf("policy id is required")
	}
	if len(p.Events) == 0 {
		return fmt.Errorf("policy %s has no event patterns", p.ID)
	}
	e.mu.Lock()
	e.policies[p.ID] = p
	e.mu.Unlock()
	e.logger.Info("policy added", "policy_id", p.ID, "category", p.Category, "priority", p.Priority)
	return nil
}

// RemovePolicy deletes a policy; it reports whether the policy existed.
func (e *Engine) RemovePolicy(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.policies[id]; !ok {
		return false
	}
	delete(e.policies, id)
	return true
}

// SetPolicyEnabled toggles a policy; it reports whether the policy exists.
func (e *Engine) SetPolicyEnabled(id string, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.policies[id]
	if !ok {
		return false
	}
	p.Enabled = enabled
	e.policies[id] = p
	return true
}

// Policies returns all policies ordered by priority ascending, id breaking
// ties.
func (e *Engine) Policies() []Policy {
	e.mu.RLock()
	out := make([]Policy, 0, len(e.policies))
	for _, p := range e.policies {
		out = append(out, p)
	}
	e.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// RegisterHandler installs a custom action handler by name.
func (e *Engine) RegisterHandler(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// OnEvent subscribes to every event handed to HandleEvent. Callbacks fire
// synchronously before evaluation; panics are isolated and logged.
func (e *Engine) OnEvent(cb func(core.Event)) {
	e.subsMu.Lock()
	defer e.subsMu.Unlock()
	e.subs = append(e.subs, cb)
}

// HandleEvent evaluates every enabled policy against the event and executes
// the actions of matches. The result slice holds one entry per matched
// policy in evaluation order.
func (e *Engine) HandleEvent(ctx context.Context, ev core.Event) []Result {
	e.notifySubscribers(ev)

	doc := eventDocument(ev, e.clock.Now())

	var results []Result
	for _, p := range e.Policies() {
		if !p.Enabled || !matchesEvent(p, ev.Type) {
			continue
		}
		if !condition.Evaluate(p.When, doc) {
			continue
		}
		e.logger.Debug("policy matched", "policy_id", p.ID, "event_type", ev.Type)
		results = append(results, e.execute(ctx, p, ev))
	}
	return results
}

func matchesEvent(p Policy, eventType string) bool {
	for _, pattern := range p.Events {
		if core.MatchEventType(pattern, eventType) {
			return true
		}
	}
	return false
}

// eventDocument flattens the event for condition evaluation. Event data
// fields are addressable both at the root ("path") and namespaced
// ("event.data.path"); current time is exposed under "now".
func eventDocument(ev core.Event, now time.Time) []byte {
	doc := make(map[string]any, len(ev.Data)+2)
	for k, v := range ev.Data {
		doc[k] = v
	}
	doc["event"] = map[string]any{
		"id":        ev.ID,
		"type":      ev.Type,
		"source":    ev.Source,
		"timestamp": ev.Timestamp.Format(time.RFC3339),
		"data":      ev.Data,
	}
	doc["now"] = map[string]any{
		"unix":    now.Unix(),
		"hour":    now.Hour(),
		"weekday": now.Weekday().String(),
	}
	return condition.Document(doc)
}

func (e *Engine) execute(ctx context.Context, p Policy, ev core.Event) Result {
	res := Result{PolicyID: p.ID}
	for _, action := range p.Actions {
		ar := e.runAction(ctx, p, action, ev, &res)
		res.Actions = append(res.Actions, ar)
		if ar.Result == ResultFailed {
			e.logger.Warn("policy action failed", "policy_id", p.ID, "action", string(action.Type), "error", ar.Error)
		}
	}
	return res
}

// runAction executes one action, converting panics and errors into a failed
// result so the remaining actions still run.
func (e *Engine) runAction(ctx context.Context, p Policy, action ActionConfig, ev core.Event, res *Result) (ar ActionResult) {
	ar = ActionResult{Type: action.Type, Result: ResultOK}
	defer func() {
		if r := recover(); r != nil {
			ar.Result = ResultFailed
			ar.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	switch action.Type {
	case ActionTriggerAgents:
		trigger := action.Trigger
		if trigger == "" {
			trigger = ev.Type
		}
		msgs := e.matrix.Trigger(ctx, trigger, triggerContext(ev))
		ar.Messages = len(msgs)

	case ActionCreateGate:
		spec := action.Gate
		if spec == nil {
			spec = &GateSpec{}
		}
		reason := spec.Reason
		if reason == "" {
			reason = fmt.Sprintf("policy %s on %s", p.ID, ev.Type)
		}
		id := e.gates.CreateGate(
			gate.Trigger{Source: "policy:" + p.ID, Reason: reason, Context: ev.Data},
			gate.Config{
				Priority:          core.Priority(spec.Priority),
				RequiredApprovers: spec.RequiredApprovers,
				ApproverTypes:     spec.ApproverTypes,
				AllowedApprovers:  spec.AllowedApprovers,
				Timeout:           time.Duration(spec.TimeoutMs) * time.Millisecond,
				Fallback:          gate.FallbackBehavior(spec.Fallback),
			},
		)
		ar.GateID = id

	case ActionBlock:
		res.Blocked = true

	case ActionNotify:
		message := action.Message
		if message == "" {
			message = fmt.Sprintf("policy %s matched event %s", p.ID, ev.Type)
		}
		if e.notifier != nil {
			e.notifier(ev, message)
		}
		e.logger.Info("policy notification", "policy_id", p.ID, "message", message)

	case ActionCustom:
		handler, ok := e.handlerByName(action.Handler)
		if !ok {
			ar.Result = ResultFailed
			ar.Error = fmt.Sprintf("handler %q not registered", action.Handler)
			return ar
		}
		if err := handler(ctx, ev, action.Params); err != nil {
			ar.Result = ResultFailed
			ar.Error = err.Error()
		}

	default:
		ar.Result = ResultSkipped
		ar.Error = fmt.Sprintf("unknown action type %q", action.Type)
	}
	return ar
}

func (e *Engine) handlerByName(name string) (Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[name]
	return h, ok
}

// triggerContext is the context map handed to the trigger scheduler for
// policy-initiated batches.
func triggerContext(ev core.Event) map[string]any {
	return map[string]any{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"source":     ev.Source,
		"data":       ev.Data,
	}
}

func (e *Engine) notifySubscribers(ev core.Event) {
	e.subsMu.RLock()
	subs := make([]func(core.Event), len(e.subs))
	copy(subs, e.subs)
	e.subsMu.RUnlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("event subscriber panicked", "event_id", ev.ID, "panic", fmt.Sprintf("%v", r))
				}
			}()
			cb(ev)
		}()
	}
}
