package matrix

import (
	"github.com/hupe1980/agentmatrix/core"
)

// Snapshot captures the registry and all rooms as an opaque serializable
// structure for an external store. The matrix itself never persists
// anything.
func (m *Matrix) Snapshot() core.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := core.Snapshot{
		ActiveRoom: m.activeRoom,
		TakenAt:    m.clock.Now(),
	}
	for _, id := range m.order {
		s.Agents = append(s.Agents, m.agents[id].Snapshot())
	}
	for _, room := range m.rooms {
		s.Rooms = append(s.Rooms, room.Snapshot())
	}
	return s
}

// Restore replaces the registry and rooms with the snapshot contents.
// Agents captured mid-run come back idle; in-flight state does not survive
// a restore.
func (m *Matrix) Restore(s core.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agents = make(map[string]*core.AgentInstance, len(s.Agents))
	m.order = m.order[:0]
	for _, as := range s.Agents {
		inst := core.NewAgentInstance(as.Config)
		inst.RestoreState(as)
		m.agents[as.Config.ID] = inst
		m.order = append(m.order, as.Config.ID)
	}

	m.rooms = make(map[string]*core.Room, len(s.Rooms))
	for _, rs := range s.Rooms {
		room := core.RestoreRoom(rs)
		room.SetMessageLimit(m.cfg.RoomMessageLimit)
		m.rooms[room.ID] = room
	}

	if _, ok := m.rooms[s.ActiveRoom]; ok {
		m.activeRoom = s.ActiveRoom
	} else if len(s.Rooms) > 0 {
		m.activeRoom = s.Rooms[0].ID
	} else {
		room := core.NewRoom(core.NewID(), "main", nil, map[string]any{"session_id": core.NewID()})
		room.SetMessageLimit(m.cfg.RoomMessageLimit)
		m.rooms[room.ID] = room
		m.activeRoom = room.ID
	}

	m.logger.Info("state restored", "agents", len(s.Agents), "rooms", len(s.Rooms))
}
