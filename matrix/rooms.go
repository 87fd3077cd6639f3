package matrix

import (
	"fmt"

	"github.com/hupe1980/agentmatrix/core"
)

// CreateRoom creates a room and returns it. The room shares the matrix-wide
// message limit.
func (m *Matrix) CreateRoom(name string, agentIDs []string, context map[string]any) *core.Room {
	room := core.NewRoom(core.NewID(), name, agentIDs, context)
	room.SetMessageLimit(m.cfg.RoomMessageLimit)

	m.mu.Lock()
	m.rooms[room.ID] = room
	m.mu.Unlock()

	m.logger.Info("room created", "room_id", room.ID, "name", name, "members", len(agentIDs))
	return room
}

// Room retrieves a room by id.
func (m *Matrix) Room(id string) (*core.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	return room, ok
}

// ActiveRoom returns the default collaboration room.
func (m *Matrix) ActiveRoom() *core.Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[m.activeRoom]
}

// SetActiveRoom switches the default collaboration room. It reports whether
// the room exists.
func (m *Matrix) SetActiveRoom(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; !ok {
		return false
	}
	m.activeRoom = id
	return true
}

// OnMessage subscribes to every message published on the bus. Callbacks fire
// synchronously on the publishing goroutine in registration order; they must
// not block for long. A panicking callback is isolated and logged.
func (m *Matrix) OnMessage(cb func(core.Message)) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.subs = append(m.subs, cb)
}

// Deliveries exposes the process-wide delivery queue for an external
// transport. The channel is bounded; the bus drops the delivery copy rather
// than block when no consumer keeps up.
func (m *Matrix) Deliveries() <-chan core.Message {
	return m.deliveries
}

// Send appends the message to its room's log (the active room when RoomID is
// empty), pushes a copy onto the delivery queue and synchronously notifies
// all subscribers. Delivery order equals publish order; the bus applies no
// priority of its own.
func (m *Matrix) Send(msg core.Message) error {
	var room *core.Room
	if msg.RoomID == "" {
		room = m.ActiveRoom()
		msg.RoomID = room.ID
	} else {
		var ok bool
		room, ok = m.Room(msg.RoomID)
		if !ok {
			return fmt.Errorf("room %s not found", msg.RoomID)
		}
	}

	room.AddMessage(msg)

	select {
	case m.deliveries <- msg:
	default:
		m.logger.Warn("delivery queue full, dropping delivery copy", "message_id", msg.ID)
	}

	m.notify(msg)
	return nil
}

// Broadcast publishes a broadcast message from the given sender to the
// active room and returns it.
func (m *Matrix) Broadcast(typ core.MessageType, from string, content core.MessageContent) (core.Message, error) {
	msg := core.NewMessage(typ, from, "", content)
	if err := m.Send(msg); err != nil {
		return core.Message{}, err
	}
	return msg, nil
}

func (m *Matrix) notify(msg core.Message) {
	m.subsMu.RLock()
	subs := make([]func(core.Message), len(m.subs))
	copy(subs, m.subs)
	m.subsMu.RUnlock()

	for _, cb := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("message subscriber panicked", "panic", fmt.Sprintf("%v", r), "message_id", msg.ID)
				}
			}()
			cb(msg)
		}()
	}
}
