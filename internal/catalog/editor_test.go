package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvergnet/tagcat/internal/models"
	"github.com/dvergnet/tagcat/internal/store"
	"github.com/dvergnet/tagcat/internal/validate"
)

func newTestEditor(t *testing.T) *Editor {
	t.Helper()

	gw, err := store.Open(store.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	e, err := NewEditor(context.Background(), gw)
	require.NoError(t, err)
	return e
}

func TestEditorLifecycle(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	typeRef := e.AddType(models.TagType{Label: "Species", Symbol: "$", Color: 0x1e90ff})
	cat := e.AddTag(models.Tag{Label: "Cat", Type: typeRef})
	dog := e.AddTag(models.Tag{Label: "Dog", Type: typeRef})
	pets := e.AddTag(models.Tag{Label: "Pets"})
	require.NoError(t, e.SetComponents(pets, []models.Ref{cat, dog}))

	assert.True(t, e.Valid())
	assert.Equal(t, 5, e.PendingCount())
	require.NoError(t, e.Commit(ctx))
	assert.Zero(t, e.PendingCount())

	// After commit the session is reloaded with store IDs.
	row, ok := e.FindTag("pets")
	require.True(t, ok)
	assert.False(t, row.Ref.IsLocal())
	assert.True(t, row.Tag.Compound)

	c, ok := e.ResolveCompound(row.Ref)
	require.True(t, ok)
	assert.Len(t, c.Components, 2)
}

func TestCommitRefusedWhileInvalid(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	e.AddTag(models.Tag{Label: "orphan"})
	assert.False(t, e.Valid())

	err := e.Commit(ctx)
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Report.Violations, 1)
	assert.Equal(t, validate.RuleDanglingType, verr.Report.Violations[0].Rule)

	// The pending edit survives the refused commit.
	assert.Equal(t, 1, e.PendingCount())
}

func TestCommitWithNothingPendingIsNoOp(t *testing.T) {
	e := newTestEditor(t)
	require.NoError(t, e.Commit(context.Background()))
}

func TestAddThenRemoveCommitsNothing(t *testing.T) {
	e := newTestEditor(t)

	ref := e.AddType(models.TagType{Label: "Mood"})
	require.NoError(t, e.RemoveType(ref))
	assert.Zero(t, e.PendingCount())

	require.NoError(t, e.Commit(context.Background()))
	assert.Empty(t, e.Types())
}

func TestRemoveTagDropsCompoundDefinition(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	typeRef := e.AddType(models.TagType{Label: "Species"})
	cat := e.AddTag(models.Tag{Label: "Cat", Type: typeRef})
	pets := e.AddTag(models.Tag{Label: "Pets"})
	require.NoError(t, e.SetComponents(pets, []models.Ref{cat}))
	require.NoError(t, e.Commit(ctx))

	row, ok := e.FindTag("Pets")
	require.True(t, ok)
	require.NoError(t, e.RemoveTag(row.Ref))
	assert.True(t, e.Valid(), "deleting a compound must drop its definition too")
	require.NoError(t, e.Commit(ctx))

	_, ok = e.FindTag("Pets")
	assert.False(t, ok)
	counts, err := e.Counts(ctx)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestRemoveCompoundKeepsTag(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	typeRef := e.AddType(models.TagType{Label: "Species"})
	cat := e.AddTag(models.Tag{Label: "Cat", Type: typeRef})
	pets := e.AddTag(models.Tag{Label: "Pets", Type: typeRef})
	require.NoError(t, e.SetComponents(pets, []models.Ref{cat}))
	require.NoError(t, e.Commit(ctx))

	row, ok := e.FindTag("Pets")
	require.True(t, ok)
	require.NoError(t, e.RemoveCompound(row.Ref))
	require.NoError(t, e.Commit(ctx))

	row, ok = e.FindTag("Pets")
	require.True(t, ok)
	assert.False(t, row.Tag.Compound)
	_, ok = e.ResolveCompound(row.Ref)
	assert.False(t, ok)
}

func TestSetComponentsReplacesDefinition(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	typeRef := e.AddType(models.TagType{Label: "Species"})
	cat := e.AddTag(models.Tag{Label: "Cat", Type: typeRef})
	dog := e.AddTag(models.Tag{Label: "Dog", Type: typeRef})
	pets := e.AddTag(models.Tag{Label: "Pets"})
	require.NoError(t, e.SetComponents(pets, []models.Ref{cat, dog}))
	require.NoError(t, e.Commit(ctx))

	row, ok := e.FindTag("Pets")
	require.True(t, ok)
	catRow, ok := e.FindTag("Cat")
	require.True(t, ok)

	require.NoError(t, e.SetComponents(row.Ref, []models.Ref{catRow.Ref, catRow.Ref}))
	c, ok := e.ResolveCompound(row.Ref)
	require.True(t, ok)
	assert.Equal(t, []models.Ref{catRow.Ref}, c.Components, "components are deduplicated")

	require.NoError(t, e.Commit(ctx))
	c, ok = e.ResolveCompound(row.Ref)
	require.True(t, ok)
	assert.Len(t, c.Components, 1)
}

func TestDeleteAndReAddSameLabelInOneBatch(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	typeRef := e.AddType(models.TagType{Label: "Species"})
	e.AddTag(models.Tag{Label: "Cat", Type: typeRef})
	require.NoError(t, e.Commit(ctx))

	row, ok := e.FindTag("Cat")
	require.True(t, ok)
	typeRow, ok := e.FindType("Species")
	require.True(t, ok)

	require.NoError(t, e.RemoveTag(row.Ref))
	e.AddTag(models.Tag{Label: "Cat", Type: typeRow.Ref})
	assert.True(t, e.Valid())
	require.NoError(t, e.Commit(ctx))

	reAdded, ok := e.FindTag("Cat")
	require.True(t, ok)
	assert.NotEqual(t, row.Tag.ID, reAdded.Tag.ID)
}

func TestBlockedDeleteClearsWhenDependentsGo(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	typeRef := e.AddType(models.TagType{Label: "Species"})
	e.AddTag(models.Tag{Label: "Cat", Type: typeRef})
	require.NoError(t, e.Commit(ctx))

	typeRow, ok := e.FindType("Species")
	require.True(t, ok)
	require.NoError(t, e.RemoveType(typeRow.Ref))
	assert.False(t, e.Valid(), "type deletion must be blocked while a tag uses it")

	tagRow, ok := e.FindTag("Cat")
	require.True(t, ok)
	require.NoError(t, e.RemoveTag(tagRow.Ref))
	assert.True(t, e.Valid(), "deleting the dependent tag in the same batch unblocks it")

	require.NoError(t, e.Commit(ctx))
	assert.Empty(t, e.Types())
	assert.Empty(t, e.Tags())
}

func TestUpdateTagRetype(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	species := e.AddType(models.TagType{Label: "Species"})
	e.AddType(models.TagType{Label: "Mood", Symbol: "~"})
	e.AddTag(models.Tag{Label: "Cat", Type: species})
	require.NoError(t, e.Commit(ctx))

	moodRow, ok := e.FindType("Mood")
	require.True(t, ok)
	catRow, ok := e.FindTag("Cat")
	require.True(t, ok)

	tag := catRow.Tag
	tag.Type = moodRow.Ref
	require.NoError(t, e.UpdateTag(catRow.Ref, tag))
	require.NoError(t, e.Commit(ctx))

	catRow, ok = e.FindTag("Cat")
	require.True(t, ok)
	assert.Equal(t, moodRow.Ref, catRow.Tag.Type)
}

func TestDuplicateLabelBlocksCommit(t *testing.T) {
	e := newTestEditor(t)
	ctx := context.Background()

	typeRef := e.AddType(models.TagType{Label: "Species"})
	e.AddTag(models.Tag{Label: "Cat", Type: typeRef})
	require.NoError(t, e.Commit(ctx))

	typeRow, ok := e.FindType("Species")
	require.True(t, ok)
	e.AddTag(models.Tag{Label: "CAT", Type: typeRow.Ref})

	err := e.Commit(ctx)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validate.RuleDuplicateLabel, verr.Report.Violations[0].Rule)
	assert.False(t, errors.Is(err, store.ErrConstraint))
}
