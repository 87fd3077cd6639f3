package matrix

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/agentmatrix/core"
	"github.com/hupe1980/agentmatrix/internal/util"
	"github.com/hupe1980/agentmatrix/model"
)

// Trigger runs one scheduling batch for the given trigger kind. Eligible
// agents execute sequentially in deterministic order (priority rank, then
// registration order) and each successful inference publishes exactly one
// message to the active room. A per-agent failure marks that agent with
// error status and is swallowed; the remaining agents in the batch still
// run. The produced messages are returned in execution order.
func (m *Matrix) Trigger(ctx context.Context, trigger string, tctx map[string]any) []core.Message {
	start := time.Now()
	batch := m.eligibleAgents(trigger)

	var produced []core.Message
	for _, inst := range batch {
		select {
		case <-ctx.Done():
			m.logger.Warn("trigger batch cancelled", "trigger", trigger, "remaining", len(batch)-len(produced))
			return produced
		default:
		}

		if !inst.BeginRun(m.clock.Now()) {
			// Lost the status CAS to a concurrent trigger; skip.
			continue
		}
		msg, err := m.runAgent(ctx, inst, trigger, tctx)
		if err != nil {
			m.logger.Error("agent run failed", "agent_id", inst.Config().ID, "trigger", trigger, "error", err.Error())
			continue
		}
		produced = append(produced, msg)
	}

	m.logger.Info("trigger batch completed",
		"trigger", trigger,
		"agents", len(batch),
		"messages", len(produced),
		"duration", time.Since(start),
	)
	return produced
}

// Consult runs a single agent's inference directly and returns the raw
// response text without publishing to a room. The review queue uses this
// path for expert analyses. The status CAS still applies so a consult never
// re-enters a thinking agent.
func (m *Matrix) Consult(ctx context.Context, agentID, trigger string, tctx map[string]any) (string, error) {
	inst, ok := m.Agent(agentID)
	if !ok {
		return "", fmt.Errorf("agent %s not found", agentID)
	}
	if !inst.BeginRun(m.clock.Now()) {
		return "", fmt.Errorf("agent %s is busy or disabled", agentID)
	}

	started := time.Now()
	var runErr error
	defer func() { inst.FinishRun(time.Since(started), runErr) }()

	cfg := inst.Config()
	system, user := m.buildPrompts(cfg, trigger, tctx)
	text, err := m.model.Invoke(ctx, system, user, m.invokeOptions(cfg))
	if err != nil {
		runErr = fmt.Errorf("inference failed: %w", err)
		return "", runErr
	}
	return text, nil
}

// runAgent performs one inference for an already claimed agent. FinishRun is
// guaranteed regardless of outcome.
func (m *Matrix) runAgent(ctx context.Context, inst *core.AgentInstance, trigger string, tctx map[string]any) (msg core.Message, err error) {
	started := time.Now()
	defer func() { inst.FinishRun(time.Since(started), err) }()

	cfg := inst.Config()
	system, user := m.buildPrompts(cfg, trigger, tctx)

	text, invokeErr := m.model.Invoke(ctx, system, user, m.invokeOptions(cfg))
	if invokeErr != nil {
		err = fmt.Errorf("inference failed: %w", invokeErr)
		return core.Message{}, err
	}

	room := m.ActiveRoom()
	msg = m.messageFromOutput(cfg.ID, room.ID, text)
	inst.RecordMessage(msg.Type)
	if sendErr := m.Send(msg); sendErr != nil {
		err = sendErr
		return core.Message{}, err
	}
	return msg, nil
}

func (m *Matrix) invokeOptions(cfg core.AgentConfig) model.Options {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	return model.Options{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     timeout,
	}
}

// buildPrompts assembles the system and user prompt for one inference. The
// configured system prompt is rendered as a template over role, trigger and
// room context; the user prompt carries the trigger context plus a window of
// recent room messages.
func (m *Matrix) buildPrompts(cfg core.AgentConfig, trigger string, tctx map[string]any) (string, string) {
	room := m.ActiveRoom()

	system := cfg.SystemPrompt
	if system == "" {
		system = fmt.Sprintf("You are %s, acting as %s in a multi-agent collaboration.", cfg.Name, cfg.Role)
	}
	rendered, err := util.RenderTemplate(system, map[string]any{
		"Role":    cfg.Role,
		"Name":    cfg.Name,
		"Trigger": trigger,
		"Context": tctx,
		"Room":    room.ContextCopy(),
	})
	if err != nil {
		m.logger.Warn("system prompt template failed, using raw prompt", "agent_id", cfg.ID, "error", err.Error())
		rendered = system
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Trigger: %s\n", trigger)
	if len(tctx) > 0 {
		if raw, err := json.MarshalIndent(tctx, "", "  "); err == nil {
			fmt.Fprintf(&sb, "\nContext:\n%s\n", raw)
		}
	}
	recent := room.Recent(m.cfg.RecentMessageWindow)
	if len(recent) > 0 {
		sb.WriteString("\nRecent messages:\n")
		for _, rm := range recent {
			fmt.Fprintf(&sb, "- [%s/%s] %s\n", rm.From, rm.Type, rm.Content.Text)
		}
	}
	sb.WriteString("\nRespond with your analysis. You may embed one ```json block with " +
		`{"message_type", "confidence", "severity", "data", "approval_required", "approval_reason", "required_approvers"} to structure the response.`)

	return rendered, sb.String()
}

var validMessageTypes = map[core.MessageType]bool{
	core.MessageThought:         true,
	core.MessageQuestion:        true,
	core.MessageRecommendation:  true,
	core.MessageConcern:         true,
	core.MessageApprovalRequest: true,
	core.MessageStatus:          true,
	core.MessageError:           true,
}

// messageFromOutput converts raw model text into a matrix message. A valid
// embedded JSON block contributes type, confidence, severity, structured data
// and an optional approval block; anything else is carried as plain text.
func (m *Matrix) messageFromOutput(agentID, roomID, text string) core.Message {
	structured, remainder, ok := model.ParseStructured(text)
	if !ok {
		return core.NewMessage(core.MessageThought, agentID, roomID, core.MessageContent{Text: remainder})
	}

	typ := core.MessageType(structured.MessageType)
	if !validMessageTypes[typ] {
		typ = core.MessageThought
	}
	if structured.ApprovalRequired {
		typ = core.MessageApprovalRequest
	}

	content := core.MessageContent{
		Text:       remainder,
		Data:       structured.Data,
		Confidence: structured.Confidence,
		Severity:   structured.Severity,
	}
	msg := core.NewMessage(typ, agentID, roomID, content)

	if structured.ApprovalRequired {
		approvers := structured.RequiredApprovers
		if approvers < 1 {
			approvers = 1
		}
		msg.Approval = &core.ApprovalBlock{
			Required:          true,
			Reason:            structured.ApprovalReason,
			RequiredApprovers: approvers,
		}
	}
	return msg
}
