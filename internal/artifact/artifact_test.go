package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/model"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	tree := FileTree{
		TotalFiles: 1,
		Files: map[string]*model.FileRecord{
			"main.py": {Path: "main.py", Language: "python"},
		},
	}
	require.NoError(t, store.Write(FileTreeName, &tree))

	var got FileTree
	env, err := store.ReadPayload(FileTreeName, &got)
	require.NoError(t, err)
	assert.Equal(t, Version, env.Version)
	assert.False(t, env.GeneratedAt.IsZero())
	assert.Equal(t, 1, got.TotalFiles)
	require.Contains(t, got.Files, "main.py")
	assert.Equal(t, "python", got.Files["main.py"].Language)
}

func TestStoreRejectsUnknownVersion(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	raw, _ := json.Marshal(map[string]any{"version": "99", "payload": map[string]any{}})
	require.NoError(t, os.WriteFile(store.Path(CallGraphName), raw, 0o644))

	_, err = store.Read(CallGraphName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestStoreReadMissing(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(DependencyGraphName)
	assert.Error(t, err)

	_, ok := store.Stat(DependencyGraphName)
	assert.False(t, ok)
}

func TestStoreWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Write(CallGraphName, &CallGraph{}))
	require.NoError(t, store.Write(CallGraphName, &CallGraph{})) // overwrite

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CallGraphName, entries[0].Name())
}
