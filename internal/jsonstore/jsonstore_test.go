package jsonstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploysync/deploysync/internal/syncerr"
)

type testDoc struct {
	Name  string         `json:"name"`
	Count int            `json:"count"`
	Items map[string]int `json:"items"`
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "doc.json")
	in := testDoc{Name: "p1", Count: 3, Items: map[string]int{"a": 1}}

	require.NoError(t, Save(path, &in))

	var out testDoc
	ok, err := Load(path, &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestLoad_MissingIsEmptyState(t *testing.T) {
	var out testDoc
	ok, err := Load(filepath.Join(t.TempDir(), "absent.json"), &out)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, testDoc{}, out)
}

func TestLoad_MissingDirectoryIsEmptyState(t *testing.T) {
	// fresh install: the state directory itself does not exist yet
	path := filepath.Join(t.TempDir(), "delta_cache", "p1.json")

	var out testDoc
	ok, err := Load(path, &out)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, testDoc{}, out)
}

func TestLoad_MalformedIsConsistencyError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	var out testDoc
	_, err := Load(path, &out)
	require.Error(t, err)

	kind, ok := syncerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, syncerr.KindConsistency, kind)
}

func TestSave_PrettyPrinted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.json")
	require.NoError(t, Save(path, &testDoc{Name: "x"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"name\"")
}
