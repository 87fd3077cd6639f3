package core

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom_AddMessage_EvictsOldest(t *testing.T) {
	room := NewRoom(NewID(), "main", nil, nil)

	for i := 0; i < DefaultRoomMessageLimit+20; i++ {
		room.AddMessage(NewMessage(MessageThought, "a", room.ID, MessageContent{
			Text: fmt.Sprintf("msg-%d", i),
		}))
	}

	require.Equal(t, DefaultRoomMessageLimit, room.Len())
	msgs := room.Messages()
	assert.Equal(t, "msg-20", msgs[0].Content.Text)
	assert.Equal(t, fmt.Sprintf("msg-%d", DefaultRoomMessageLimit+19), msgs[len(msgs)-1].Content.Text)
}

func TestRoom_Recent(t *testing.T) {
	room := NewRoom(NewID(), "main", nil, nil)
	for i := 0; i < 10; i++ {
		room.AddMessage(NewMessage(MessageThought, "a", room.ID, MessageContent{
			Text: fmt.Sprintf("msg-%d", i),
		}))
	}

	recent := room.Recent(3)
	require.Len(t, recent, 3)
	assert.Equal(t, "msg-7", recent[0].Content.Text)
	assert.Equal(t, "msg-9", recent[2].Content.Text)

	assert.Len(t, room.Recent(0), 10)
	assert.Len(t, room.Recent(100), 10)
}

func TestRoom_Context(t *testing.T) {
	room := NewRoom(NewID(), "main", nil, map[string]any{"session_id": "s1"})

	room.SetContext("phase", "review")
	room.MergeContext(map[string]any{"commit": "abc123", "phase": "merge"})

	v, ok := room.GetContext("phase")
	require.True(t, ok)
	assert.Equal(t, "merge", v)

	// The copy must not alias the shared map.
	cp := room.ContextCopy()
	cp["phase"] = "mutated"
	v, _ = room.GetContext("phase")
	assert.Equal(t, "merge", v)
}

func TestRoom_Membership(t *testing.T) {
	room := NewRoom(NewID(), "main", []string{"a"}, nil)
	assert.True(t, room.HasAgent("a"))
	assert.False(t, room.HasAgent("b"))

	room.AddAgent("b")
	room.AddAgent("b") // idempotent
	assert.True(t, room.HasAgent("b"))
	assert.Len(t, room.Agents, 2)
}

func TestRoom_SnapshotRoundTrip(t *testing.T) {
	room := NewRoom(NewID(), "main", []string{"a"}, map[string]any{"k": "v"})
	room.AddMessage(NewMessage(MessageConcern, "a", room.ID, MessageContent{Text: "watch out"}))

	restored := RestoreRoom(room.Snapshot())
	assert.Equal(t, room.ID, restored.ID)
	assert.Equal(t, 1, restored.Len())
	v, ok := restored.GetContext("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestMatchEventType(t *testing.T) {
	assert.True(t, MatchEventType("commit:pushed", "commit:pushed"))
	assert.False(t, MatchEventType("commit:pushed", "commit:reverted"))
	assert.True(t, MatchEventType("commit:*", "commit:pushed"))
	assert.True(t, MatchEventType("*", "anything:at:all"))
	assert.False(t, MatchEventType("deploy:*", "commit:pushed"))
}
