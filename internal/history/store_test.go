package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/wordsim/internal/models"
)

func TestStore_AppendKeepsOrder(t *testing.T) {
	s := NewStore()
	s.Append(models.Entry{Text: "apple"})
	s.Append(models.Entry{Text: "banana"})
	s.Append(models.Entry{Text: "apple"})

	snap := s.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "apple", snap[0].Text)
	assert.Equal(t, "banana", snap[1].Text)
	assert.Equal(t, "apple", snap[2].Text)
	assert.Equal(t, 3, s.Len())
}

func TestStore_SnapshotIsStableAcrossAppend(t *testing.T) {
	s := NewStore()
	s.Append(models.Entry{Text: "apple"})

	snap := s.Snapshot()
	s.Append(models.Entry{Text: "banana"})

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, s.Len())
}

func TestStore_SnapshotIsStableAcrossClear(t *testing.T) {
	s := NewStore()
	s.Append(models.Entry{Text: "apple"})
	s.Append(models.Entry{Text: "banana"})

	snap := s.Snapshot()
	s.Clear()
	s.Append(models.Entry{Text: "cherry"})

	require.Len(t, snap, 2)
	assert.Equal(t, "apple", snap[0].Text)
	assert.Equal(t, "banana", snap[1].Text)
}

func TestStore_ClearResets(t *testing.T) {
	s := NewStore()
	s.Append(models.Entry{Text: "apple"})
	s.Clear()

	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Snapshot())
	assert.NotNil(t, s.Snapshot())
}
