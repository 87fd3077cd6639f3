package core

import "time"

// AgentSnapshot captures an agent's config plus runtime state.
type AgentSnapshot struct {
	Config      AgentConfig   `json:"config"`
	Status      AgentStatus   `json:"status"`
	LastRunAt   time.Time     `json:"last_run_at"`
	LastError   string        `json:"last_error,omitempty"`
	Budget      float64       `json:"budget"`
	Metrics     AgentMetrics  `json:"metrics"`
	Attestation string        `json:"attestation"`
}

// RoomSnapshot captures a room's membership, context and message log.
type RoomSnapshot struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Agents   []string       `json:"agents"`
	Context  map[string]any `json:"context"`
	Messages []Message      `json:"messages"`
	Created  time.Time      `json:"created"`
	Updated  time.Time      `json:"updated"`
}

// Snapshot is the opaque serializable structure exposed at the persistence
// boundary. The core never persists anything itself; an external store
// serializes and restores this shape.
type Snapshot struct {
	Agents     []AgentSnapshot `json:"agents"`
	Rooms      []RoomSnapshot  `json:"rooms"`
	ActiveRoom string          `json:"active_room,omitempty"`
	TakenAt    time.Time       `json:"taken_at"`
}

// SnapshotStore persists named snapshots. Implementations live outside core
// so higher level packages never depend on concrete storage.
type SnapshotStore interface {
	Save(name string, s Snapshot) error
	Load(name string) (Snapshot, error)
	List() ([]string, error)
	Delete(name string) error
}
