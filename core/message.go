package core

import (
	"time"

	"github.com/google/uuid"
)

// MessageType categorizes the intent of a matrix message.
type MessageType string

const (
	// MessageThought is a free-form reasoning message.
	MessageThought MessageType = "thought"
	// MessageQuestion asks another agent (or the room) for input.
	MessageQuestion MessageType = "question"
	// MessageRecommendation proposes a concrete action.
	MessageRecommendation MessageType = "recommendation"
	// MessageConcern flags a risk or problem.
	MessageConcern MessageType = "concern"
	// MessageApprovalRequest asks for sign-off; carries an ApprovalBlock.
	MessageApprovalRequest MessageType = "approval_request"
	// MessageStatus reports progress or lifecycle information.
	MessageStatus MessageType = "status"
	// MessageError reports a failure.
	MessageError MessageType = "error"
)

// MessageContent is the payload of a message: text plus optional structured
// data extracted from the model output, with confidence and severity hints.
type MessageContent struct {
	Text       string         `json:"text"`
	Data       map[string]any `json:"data,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Severity   string         `json:"severity,omitempty"`
}

// ApprovalBlock marks a message as requiring sign-off before the action it
// describes may proceed. The façade turns it into an approval gate. Fallback
// uses the gate fallback vocabulary (reject, approve, escalate).
type ApprovalBlock struct {
	Required          bool          `json:"required"`
	Reason            string        `json:"reason"`
	RequiredApprovers int           `json:"required_approvers"`
	ApproverTypes     []string      `json:"approver_types,omitempty"`
	Timeout           time.Duration `json:"timeout"`
	Fallback          string        `json:"fallback,omitempty"`
}

// Message is the unit of communication between agents. It is immutable once
// created and owned by its room. An empty To means broadcast.
type Message struct {
	ID        string         `json:"id"`
	Type      MessageType    `json:"type"`
	From      string         `json:"from"`
	To        string         `json:"to,omitempty"`
	RoomID    string         `json:"room_id"`
	Timestamp time.Time      `json:"timestamp"`
	Content   MessageContent `json:"content"`
	Approval  *ApprovalBlock `json:"approval,omitempty"`
}

// NewMessage creates a broadcast message in the given room.
func NewMessage(typ MessageType, from, roomID string, content MessageContent) Message {
	return Message{
		ID:        NewID(),
		Type:      typ,
		From:      from,
		RoomID:    roomID,
		Timestamp: time.Now().UTC(),
		Content:   content,
	}
}

// NewDirectMessage creates a message addressed to a single agent.
func NewDirectMessage(typ MessageType, from, to, roomID string, content MessageContent) Message {
	m := NewMessage(typ, from, roomID, content)
	m.To = to
	return m
}

// IsBroadcast reports whether the message is addressed to the whole room.
func (m Message) IsBroadcast() bool { return m.To == "" }

// NewID generates a new unique identifier for messages, events, gates,
// rounds and tasks.
func NewID() string { return uuid.NewString() }
