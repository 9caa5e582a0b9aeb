package workset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvergnet/tagcat/internal/models"
)

func newTagSet() *Set[models.Tag] {
	return NewSet(func(t models.Tag) int64 { return t.ID })
}

func TestRapidAddsGetDistinctHandles(t *testing.T) {
	s := newTagSet()

	// Many adds within the same timestamp tick must not collide and
	// silently replace each other.
	for i := 0; i < 1000; i++ {
		s.Add(models.Tag{Label: "sunset"})
	}
	assert.Len(t, s.Inserted(), 1000)
}

func TestAddThenRemoveIsNetZero(t *testing.T) {
	s := newTagSet()

	ref := s.Add(models.Tag{Label: "sunset"})
	assert.Equal(t, 1, s.PendingCount())
	assert.True(t, ref.IsLocal())

	require.NoError(t, s.Remove(ref))
	assert.Equal(t, 0, s.PendingCount())

	_, ok := s.Resolve(ref)
	assert.False(t, ok, "discarded insert should not resolve")
}

func TestUpdateOfPendingInsertReplacesInPlace(t *testing.T) {
	s := newTagSet()

	ref := s.Add(models.Tag{Label: "sunset"})
	require.NoError(t, s.Update(ref, models.Tag{Label: "sunrise"}))

	// Still one pending row, no separate modify record.
	assert.Equal(t, 1, s.PendingCount())
	assert.Len(t, s.Inserted(), 1)
	assert.Empty(t, s.Modified())

	got, ok := s.Resolve(ref)
	require.True(t, ok)
	assert.Equal(t, "sunrise", got.Label)
}

func TestRemoveWinsOverModify(t *testing.T) {
	s := newTagSet()
	s.Load([]models.Tag{{ID: 1, Label: "sunset"}})

	ref := models.StoreRef(1)
	require.NoError(t, s.Update(ref, models.Tag{ID: 1, Label: "sunrise"}))
	assert.Equal(t, 1, s.PendingCount())

	require.NoError(t, s.Remove(ref))
	assert.Equal(t, 1, s.PendingCount())
	assert.Empty(t, s.Modified(), "deletion should drop the staged modification")
	assert.Equal(t, []int64{1}, s.Deleted())

	_, ok := s.Resolve(ref)
	assert.False(t, ok)
}

func TestUnknownKeys(t *testing.T) {
	s := newTagSet()
	s.Load([]models.Tag{{ID: 1, Label: "sunset"}})

	assert.ErrorIs(t, s.Update(models.StoreRef(42), models.Tag{}), ErrNotFound)
	assert.ErrorIs(t, s.Remove(models.StoreRef(42)), ErrNotFound)
	assert.ErrorIs(t, s.Update(models.LocalRef("nope"), models.Tag{}), ErrNotFound)
	assert.ErrorIs(t, s.Remove(models.LocalRef("nope")), ErrNotFound)

	// A deleted row behaves like an unknown one.
	require.NoError(t, s.Remove(models.StoreRef(1)))
	assert.ErrorIs(t, s.Update(models.StoreRef(1), models.Tag{}), ErrNotFound)
	assert.ErrorIs(t, s.Remove(models.StoreRef(1)), ErrNotFound)
}

func TestResolveAppliesPendingEdits(t *testing.T) {
	s := newTagSet()
	s.Load([]models.Tag{{ID: 1, Label: "sunset"}})

	got, ok := s.Resolve(models.StoreRef(1))
	require.True(t, ok)
	assert.Equal(t, "sunset", got.Label)

	require.NoError(t, s.Update(models.StoreRef(1), models.Tag{ID: 1, Label: "sunrise"}))
	got, ok = s.Resolve(models.StoreRef(1))
	require.True(t, ok)
	assert.Equal(t, "sunrise", got.Label)

	// Snapshot stays untouched underneath.
	snap, ok := s.Snapshot(1)
	require.True(t, ok)
	assert.Equal(t, "sunset", snap.Label)
}

func TestEffectiveExcludesDeletedIncludesInserted(t *testing.T) {
	s := newTagSet()
	s.Load([]models.Tag{{ID: 1, Label: "sunset"}, {ID: 2, Label: "beach"}})

	require.NoError(t, s.Remove(models.StoreRef(2)))
	ref := s.Add(models.Tag{Label: "dunes"})

	eff := s.Effective()
	assert.Len(t, eff, 2)
	assert.Contains(t, eff, models.StoreRef(1))
	assert.Contains(t, eff, ref)
	assert.NotContains(t, eff, models.StoreRef(2))
}

func TestLoadResetsPendingBuckets(t *testing.T) {
	s := newTagSet()
	s.Load([]models.Tag{{ID: 1, Label: "sunset"}})

	s.Add(models.Tag{Label: "dunes"})
	require.NoError(t, s.Remove(models.StoreRef(1)))
	require.Equal(t, 2, s.PendingCount())

	s.Load([]models.Tag{{ID: 1, Label: "sunset"}, {ID: 2, Label: "dunes"}})
	assert.Equal(t, 0, s.PendingCount())

	_, ok := s.Resolve(models.StoreRef(2))
	assert.True(t, ok)
}

func TestWorkingSetPendingCount(t *testing.T) {
	ws := New()

	typeRef := ws.Types.Add(models.TagType{Label: "Species"})
	ws.Tags.Add(models.Tag{Label: "cat", Type: typeRef})
	assert.Equal(t, 2, ws.PendingCount())

	ws.Load(nil, nil, nil)
	assert.Equal(t, 0, ws.PendingCount())
}
