package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

func table() *dataset.Table {
	return dataset.MustTable([]string{"text", "score", "meta"}, [][]any{
		{"<b>a</b> & b", 0.5, map[string]any{"tags": []any{"x", int64(1)}}},
		{nil, int64(42), nil},
	})
}

func TestStore_SaveLoadTable(t *testing.T) {
	store := NewStore(t.TempDir())
	assert.False(t, store.Exists("mix", false))

	require.NoError(t, store.Save("mix", table()))
	assert.True(t, store.Exists("mix", false))
	assert.False(t, store.Exists("mix", true), "single-table artifacts have no dict marker")
	assert.FileExists(t, filepath.Join(store.Path("mix"), InfoFile))
	assert.FileExists(t, filepath.Join(store.Path("mix"), DataFile))

	ds, err := store.Load("mix", false)
	require.NoError(t, err)
	got := ds.(*dataset.Table)
	assert.Equal(t, table().Columns(), got.Columns())
	assert.Equal(t, table().Rows(), got.Rows())
}

func TestStore_SaveLoadSplits(t *testing.T) {
	store := NewStore(t.TempDir())
	splits := dataset.NewSplits()
	splits.Add(dataset.SplitTrain, dataset.MustTable([]string{"x"}, [][]any{{int64(1)}, {int64(2)}}))
	splits.Add(dataset.SplitTest, dataset.MustTable([]string{"x"}, [][]any{{int64(3)}}))

	require.NoError(t, store.Save("mix", splits))
	assert.True(t, store.Exists("mix", true))
	assert.FileExists(t, filepath.Join(store.Path("mix"), "train", InfoFile))

	ds, err := store.Load("mix", true)
	require.NoError(t, err)
	loaded := ds.(*dataset.Splits)
	assert.Equal(t, []string{"train", "test"}, loaded.Names())
	assert.Equal(t, 3, loaded.NumRows())

	detected, err := Detect(store.Path("mix"))
	require.NoError(t, err)
	assert.IsType(t, &dataset.Splits{}, detected)
}

func TestStore_SaveReplacesPrevious(t *testing.T) {
	store := NewStore(t.TempDir())
	splits := dataset.NewSplits()
	splits.Add(dataset.SplitTrain, dataset.Empty("x"))
	require.NoError(t, store.Save("mix", splits))

	require.NoError(t, store.Save("mix", table()))
	assert.False(t, store.Exists("mix", true), "old split marker must be gone")
	assert.True(t, store.Exists("mix", false))

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no staging directories may remain")
	assert.Equal(t, "mix", entries[0].Name())
}

func TestStore_FailedSaveKeepsPrevious(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("mix", table()))

	bad := dataset.MustTable([]string{"x"}, [][]any{{make(chan int)}})
	require.Error(t, store.Save("mix", bad))

	ds, err := store.Load("mix", false)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumRows())

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_ModTime(t *testing.T) {
	store := NewStore(t.TempDir())
	_, ok, err := store.ModTime("mix", false)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save("mix", table()))
	mtime, ok, err := store.ModTime("mix", false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, mtime.IsZero())
}

func TestLoad_Truncated(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("mix", table()))
	require.NoError(t, os.WriteFile(filepath.Join(store.Path("mix"), DataFile), []byte("[\"x\", 1, null]\n"), 0o600))

	_, err := store.Load("mix", false)
	assert.ErrorContains(t, err, "truncated")
}
