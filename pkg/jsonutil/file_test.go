package jsonutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	require.NoError(t, WriteFile(path, doc{Name: "orders", Count: 3}))

	var got doc
	require.NoError(t, ReadFile(path, &got))
	assert.Equal(t, doc{Name: "orders", Count: 3}, got)
}

func TestWriteFile_ReplacesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")

	require.NoError(t, WriteFile(path, doc{Name: "first"}))
	require.NoError(t, WriteFile(path, doc{Name: "second"}))

	var got doc
	require.NoError(t, ReadFile(path, &got))
	assert.Equal(t, "second", got.Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "doc.json", entries[0].Name())
}

func TestReadFile_Missing(t *testing.T) {
	var got doc
	err := ReadFile(filepath.Join(t.TempDir(), "missing.json"), &got)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestReadFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var got doc
	err := ReadFile(path, &got)
	require.Error(t, err)
	assert.False(t, errors.Is(err, fs.ErrNotExist))
}
