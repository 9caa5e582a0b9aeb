package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	dir := testEnv(t)
	seedCatalogue(t)
	require.NoError(t, compoundSetRun("pets", []string{"cat", "dog"}))

	file := filepath.Join(dir, "catalogue.yaml")
	require.NoError(t, exportRun(file))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Species")
	assert.Contains(t, string(data), "pets")

	// Import into a second, empty store.
	_ = gateway.Close()
	gateway = nil
	viper.Set("db_path", filepath.Join(dir, "second.db"))

	require.NoError(t, importRun(file))

	e, err := newEditor(context.Background())
	require.NoError(t, err)

	row, ok := e.FindTag("pets")
	require.True(t, ok)
	assert.True(t, row.Tag.Compound)
	c, ok := e.ResolveCompound(row.Ref)
	require.True(t, ok)
	assert.Len(t, c.Components, 2)

	typeRow, ok := e.FindType("Species")
	require.True(t, ok)
	assert.NotZero(t, typeRow.Type.ID)

	catRow, ok := e.FindTag("cat")
	require.True(t, ok)
	assert.Equal(t, typeRow.Ref, catRow.Tag.Type)
}

func TestImport_InvalidFileChangesNothing(t *testing.T) {
	dir := testEnv(t)

	file := filepath.Join(dir, "bad.yaml")
	doc := `types:
  - label: Species
tags:
  - label: cat
    type: Species
  - label: cat
    type: Species
`
	require.NoError(t, os.WriteFile(file, []byte(doc), 0644))

	err := importRun(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing committed")

	e, err := newEditor(context.Background())
	require.NoError(t, err)
	assert.Empty(t, e.Types())
	assert.Empty(t, e.Tags())
}

func TestImport_UnknownTypeFails(t *testing.T) {
	dir := testEnv(t)

	file := filepath.Join(dir, "bad.yaml")
	doc := `tags:
  - label: cat
    type: Missing
`
	require.NoError(t, os.WriteFile(file, []byte(doc), 0644))

	err := importRun(file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tag type")
}

func TestExport_ToStdout(t *testing.T) {
	testEnv(t)
	seedCatalogue(t)

	require.NoError(t, exportRun(""))
}
