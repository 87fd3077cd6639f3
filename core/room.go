package core

import (
	"sync"
	"time"
)

// DefaultRoomMessageLimit caps the per-room message log. Oldest messages are
// evicted first once the cap is reached.
const DefaultRoomMessageLimit = 500

// Room is an ordered, bounded message log shared by a set of agents plus a
// mutable key/value context (session id, recent events, scratch data). It is
// safe for concurrent access.
//
// Contract:
//   - AddMessage evicts the oldest entry beyond the configured limit
//   - Messages returns a defensive copy
//   - Clone performs deep copies of maps/slices for safe divergence
type Room struct {
	ID      string
	Name    string
	Agents  []string
	Created time.Time
	Updated time.Time

	mu       sync.RWMutex
	context  map[string]any
	messages []Message
	limit    int
}

// NewRoom creates a room with the default message limit.
func NewRoom(id, name string, agentIDs []string, context map[string]any) *Room {
	if context == nil {
		context = map[string]any{}
	}
	now := time.Now().UTC()
	agents := make([]string, len(agentIDs))
	copy(agents, agentIDs)
	return &Room{
		ID:      id,
		Name:    name,
		Agents:  agents,
		Created: now,
		Updated: now,
		context: context,
		limit:   DefaultRoomMessageLimit,
	}
}

// SetMessageLimit overrides the log cap. Values below 1 are ignored.
func (r *Room) SetMessageLimit(limit int) {
	if limit < 1 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = limit
	if len(r.messages) > limit {
		r.messages = append([]Message(nil), r.messages[len(r.messages)-limit:]...)
	}
}

// AddMessage appends a message, evicting the oldest entry when the log is at
// capacity.
func (r *Room) AddMessage(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	if len(r.messages) > r.limit {
		r.messages = r.messages[len(r.messages)-r.limit:]
	}
	r.Updated = time.Now().UTC()
}

// Messages returns a defensive copy of the full message log.
func (r *Room) Messages() []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Recent returns up to n of the newest messages in chronological order.
func (r *Room) Recent(n int) []Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > len(r.messages) {
		n = len(r.messages)
	}
	out := make([]Message, n)
	copy(out, r.messages[len(r.messages)-n:])
	return out
}

// Len returns the current message count.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.messages)
}

// GetContext returns the value and existence flag for a context key.
func (r *Room) GetContext(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.context[key]
	return v, ok
}

// SetContext sets a key/value pair in the shared room context.
func (r *Room) SetContext(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.context[key] = value
	r.Updated = time.Now().UTC()
}

// MergeContext folds the provided delta into the shared context.
func (r *Room) MergeContext(delta map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range delta {
		r.context[k] = v
	}
	r.Updated = time.Now().UTC()
}

// ContextCopy returns a shallow copy of the shared context map.
func (r *Room) ContextCopy() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.context))
	for k, v := range r.context {
		out[k] = v
	}
	return out
}

// HasAgent reports whether the agent is a member of the room.
func (r *Room) HasAgent(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.Agents {
		if id == agentID {
			return true
		}
	}
	return false
}

// AddAgent adds a member if not already present.
func (r *Room) AddAgent(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.Agents {
		if id == agentID {
			return
		}
	}
	r.Agents = append(r.Agents, agentID)
	r.Updated = time.Now().UTC()
}

// Snapshot captures the room for the persistence boundary.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := RoomSnapshot{
		ID:      r.ID,
		Name:    r.Name,
		Agents:  make([]string, len(r.Agents)),
		Context: make(map[string]any, len(r.context)),
		Created: r.Created,
		Updated: r.Updated,
	}
	copy(s.Agents, r.Agents)
	for k, v := range r.context {
		s.Context[k] = v
	}
	s.Messages = make([]Message, len(r.messages))
	copy(s.Messages, r.messages)
	return s
}

// RestoreRoom rebuilds a room from a snapshot.
func RestoreRoom(s RoomSnapshot) *Room {
	r := NewRoom(s.ID, s.Name, s.Agents, s.Context)
	r.Created = s.Created
	r.Updated = s.Updated
	r.messages = make([]Message, len(s.Messages))
	copy(r.messages, s.Messages)
	return r
}
