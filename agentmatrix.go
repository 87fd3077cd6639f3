// Package agentmatrix provides a high-level façade over the matrix, gate,
// policy, bidding and review subsystems, enabling rapid construction of
// multi-agent decision systems. Most applications interact with this package
// by:
//  1. Creating an AgentMatrix via New() with a model adapter
//  2. Registering one or more agent configurations
//  3. Feeding events through HandleEvent and triggering agents directly
//
// The façade wires the subsystems together: approval-request messages sent
// on the bus automatically open gates, policy actions can trigger agents and
// create gates, and the review queue consults agents through the matrix. All
// defaults are safe for local development and testing; production
// deployments typically supply a structured logger.
package agentmatrix

import (
	"context"

	"github.com/hupe1980/agentmatrix/bidding"
	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/gate"
	"github.com/hupe1980/agentmatrix/logging"
	"github.com/hupe1980/agentmatrix/matrix"
	"github.com/hupe1980/agentmatrix/model"
	"github.com/hupe1980/agentmatrix/policy"
	"github.com/hupe1980/agentmatrix/review"
)

// Options configures the AgentMatrix instance.
type Options struct {
	// MatrixConfig contains operational parameters for the agent matrix
	// (room caps, default inference timeout, delivery buffering).
	MatrixConfig matrix.Config

	// MaxConcurrentReviews caps how many review tasks process
	// simultaneously.
	MaxConcurrentReviews int

	// GateOptions tune approval gate retention and sweeping.
	GateOptions func(o *gate.Options)

	// Clock drives cooldowns, gate timeouts and bidding timestamps;
	// defaults to the system clock.
	Clock core.Clock

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// AgentMatrix is the high-level façade aggregating the agent matrix and its
// supporting subsystems.
type AgentMatrix struct {
	opts    Options
	matrix  *matrix.Matrix
	gates   *gate.Manager
	policy  *policy.Engine
	bidding *bidding.Allocator
	reviews *review.Queue
}

// New creates a new AgentMatrix instance around the given model adapter with
// optional overrides.
func New(m model.Model, optFns ...func(o *Options)) *AgentMatrix {
	opts := Options{
		MatrixConfig:         matrix.DefaultConfig,
		MaxConcurrentReviews: 2,
		Clock:                core.SystemClock(),
		Logger:               logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	mx := matrix.New(m, func(o *matrix.Options) {
		o.Config = opts.MatrixConfig
		o.Logger = opts.Logger
		o.Clock = opts.Clock
	})

	gates := gate.NewManager(func(o *gate.Options) {
		o.Logger = opts.Logger
		o.Clock = opts.Clock
		if opts.GateOptions != nil {
			opts.GateOptions(o)
		}
	})

	pol := policy.NewEngine(mx, gates, func(o *policy.Options) {
		o.Logger = opts.Logger
	})

	alloc := bidding.NewAllocator(mx, func(o *bidding.Options) {
		o.Logger = opts.Logger
		o.Clock = opts.Clock
	})

	reviews := review.NewQueue(mx, func(o *review.Options) {
		o.MaxConcurrentReviews = opts.MaxConcurrentReviews
		o.Logger = opts.Logger
	})

	am := &AgentMatrix{
		opts:    opts,
		matrix:  mx,
		gates:   gates,
		policy:  pol,
		bidding: alloc,
		reviews: reviews,
	}

	// Approval-request messages on the bus open gates automatically so
	// agents can demand sign-off without touching the gate manager.
	mx.OnMessage(am.openGateFromMessage)

	return am
}

// Close releases background resources (review workers, gate sweeping).
func (am *AgentMatrix) Close() {
	am.reviews.Close()
	am.gates.Close()
}

// Matrix exposes the underlying agent matrix.
func (am *AgentMatrix) Matrix() *matrix.Matrix { return am.matrix }

// Gates exposes the approval gate manager.
func (am *AgentMatrix) Gates() *gate.Manager { return am.gates }

// Policies exposes the policy engine.
func (am *AgentMatrix) Policies() *policy.Engine { return am.policy }

// Bidding exposes the resource bidding allocator.
func (am *AgentMatrix) Bidding() *bidding.Allocator { return am.bidding }

// Reviews exposes the background review queue.
func (am *AgentMatrix) Reviews() *review.Queue { return am.reviews }

// RegisterAgent adds or updates an agent in the matrix.
func (am *AgentMatrix) RegisterAgent(config core.AgentConfig) *core.AgentInstance {
	return am.matrix.Register(config)
}

// Trigger runs every eligible agent subscribed to the trigger and returns
// the messages they produced.
func (am *AgentMatrix) Trigger(ctx context.Context, trigger string, tctx map[string]any) []core.Message {
	return am.matrix.Trigger(ctx, trigger, tctx)
}

// HandleEvent evaluates the event against all enabled policies, executing
// the actions of every policy that matches.
func (am *AgentMatrix) HandleEvent(ctx context.Context, ev core.Event) []policy.Result {
	return am.policy.HandleEvent(ctx, ev)
}

// EnqueueReview schedules a background multi-expert review task and returns
// its id.
func (am *AgentMatrix) EnqueueReview(task review.Task) string {
	return am.reviews.Enqueue(task)
}

// Snapshot captures agent and room state for persistence. Pending gates,
// open bidding rounds and queued reviews are transient and not included.
func (am *AgentMatrix) Snapshot() core.Snapshot {
	return am.matrix.Snapshot()
}

// Restore replaces agent and room state from a snapshot.
func (am *AgentMatrix) Restore(s core.Snapshot) {
	am.matrix.Restore(s)
}

// SaveSnapshot captures the current state and persists it under the given
// name in the provided store.
func (am *AgentMatrix) SaveSnapshot(s core.SnapshotStore, name string) error {
	return s.Save(name, am.Snapshot())
}

// LoadSnapshot reads the named snapshot from the store and restores it.
func (am *AgentMatrix) LoadSnapshot(s core.SnapshotStore, name string) error {
	snap, err := s.Load(name)
	if err != nil {
		return err
	}
	am.Restore(snap)
	return nil
}

// openGateFromMessage turns approval-request messages into pending gates.
func (am *AgentMatrix) openGateFromMessage(msg core.Message) {
	if msg.Type != core.MessageApprovalRequest || msg.Approval == nil || !msg.Approval.Required {
		return
	}

	ab := msg.Approval
	fallback := gate.FallbackReject
	if ab.Fallback != "" {
		fallback = gate.FallbackBehavior(ab.Fallback)
	}

	gateID := am.gates.CreateGate(gate.Trigger{
		Source: msg.From,
		Reason: ab.Reason,
		Context: map[string]any{
			"message_id": msg.ID,
			"room_id":    msg.RoomID,
		},
	}, gate.Config{
		RequiredApprovers: ab.RequiredApprovers,
		ApproverTypes:     ab.ApproverTypes,
		Timeout:           ab.Timeout,
		Fallback:          fallback,
	})

	am.opts.Logger.Info("gate opened from approval request",
		"gate_id", gateID, "message_id", msg.ID, "from", msg.From)
}
