package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// documentState is a struct for document round-trip testing.
type documentState struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

func TestDocument_SaveLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	doc := NewDocument[documentState](dir, "mystate", NewJSONCodec())

	original := documentState{Label: "hello", Value: 42}

	err := doc.Save(&original)

	require.NoError(t, err)

	var restored documentState

	err = doc.Load(&restored)

	require.NoError(t, err)

	assert.Equal(t, original, restored)
}

func TestDocument_LoadMissingFile(t *testing.T) {
	t.Parallel()

	doc := NewDocument[documentState](t.TempDir(), "missing", NewJSONCodec())

	var state documentState

	err := doc.Load(&state)

	require.ErrorIs(t, err, ErrNotExist)
}

func TestDocument_LoadCorruptFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	doc := NewDocument[documentState](dir, "corrupt", NewJSONCodec())

	err := os.WriteFile(doc.Path(), []byte("{not json"), 0o644)

	require.NoError(t, err)

	var state documentState

	err = doc.Load(&state)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotExist)
}

func TestDocument_SaveCreatesDir(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "state")

	doc := NewDocument[documentState](dir, "state", NewJSONCodec())

	err := doc.Save(&documentState{Label: "x"})

	require.NoError(t, err)

	var restored documentState

	require.NoError(t, doc.Load(&restored))
	assert.Equal(t, "x", restored.Label)
}

func TestDocument_SaveLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	doc := NewDocument[documentState](dir, "state", NewJSONCodec())

	require.NoError(t, doc.Save(&documentState{Label: "a"}))
	require.NoError(t, doc.Save(&documentState{Label: "b"}))

	entries, err := os.ReadDir(dir)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}

func TestDocument_ReadRaw(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	doc := NewDocument[documentState](dir, "raw", NewJSONCodec())

	require.NoError(t, doc.Save(&documentState{Label: "raw", Value: 7}))

	data, err := doc.ReadRaw()

	require.NoError(t, err)
	assert.Contains(t, string(data), `"raw"`)

	missing := NewDocument[documentState](dir, "absent", NewJSONCodec())

	_, err = missing.ReadRaw()

	require.ErrorIs(t, err, ErrNotExist)
}
