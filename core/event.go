package core

import (
	"strings"
	"time"
)

// Event is the sole external input shape of the policy engine. Type uses a
// hierarchical "category:action" string matched by exact value or
// trailing-wildcard prefix ("file:*").
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Source    string         `json:"source"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh ID and UTC timestamp.
func NewEvent(typ, source string, data map[string]any) Event {
	return Event{
		ID:        NewID(),
		Timestamp: time.Now().UTC(),
		Type:      typ,
		Source:    source,
		Data:      data,
	}
}

// MatchEventType reports whether an event type matches a pattern. Patterns
// are either exact ("file:save"), a trailing wildcard prefix ("file:*") or
// the universal "*".
func MatchEventType(pattern, eventType string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(eventType, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == eventType
}
