package store

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/agentmatrix/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.SnapshotStore = (*FileStore)(nil)

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "snapshots"))
	require.NoError(t, err)

	require.NoError(t, s.Save("nightly", sampleSnapshot()))

	snap, err := s.Load("nightly")
	require.NoError(t, err)
	require.Len(t, snap.Agents, 1)
	assert.Equal(t, "a", snap.Agents[0].Config.ID)
	assert.Equal(t, "room-1", snap.ActiveRoom)
	assert.True(t, snap.TakenAt.Equal(sampleSnapshot().TakenAt))
}

func TestFileStore_LoadMissing(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load("nope")
	assert.Error(t, err)
}

func TestFileStore_ListAndDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Save("b", sampleSnapshot()))
	require.NoError(t, s.Save("a", sampleSnapshot()))

	names, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, s.Delete("a"))
	require.NoError(t, s.Delete("a"))
	names, err = s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, names)
}

func TestFileStore_RejectsPathEscapes(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Save("../escape", sampleSnapshot()))
	assert.Error(t, s.Save("a/b", sampleSnapshot()))
	assert.Error(t, s.Save("", sampleSnapshot()))
}
