package snapshot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
)

// countingStore counts listing calls that reach the backend.
type countingStore struct {
	snapshot.Store

	lists int
}

func (c *countingStore) ListFiles(dir string) ([]string, error) {
	c.lists++

	return c.Store.ListFiles(dir)
}

func (c *countingStore) ListDirs(dir string) ([]string, error) {
	c.lists++

	return c.Store.ListDirs(dir)
}

func TestCachedListingFollowsWrites(t *testing.T) {
	t.Parallel()

	inner := &countingStore{Store: snapshot.NewDirStore(t.TempDir())}
	store := snapshot.Cached(inner)

	files, err := store.ListFiles(".")
	require.NoError(t, err)
	assert.Empty(t, files)

	dirs, err := store.ListDirs(".")
	require.NoError(t, err)
	assert.Empty(t, dirs)
	assert.Equal(t, 2, inner.lists)

	write(t, store, "b.record", "b")
	write(t, store, "a.record", "a")
	write(t, store, "x/y/z.record", "z")

	files, err = store.ListFiles(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.record", "b.record"}, files)

	dirs, err = store.ListDirs(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, dirs)
	assert.Equal(t, 2, inner.lists)

	require.NoError(t, store.Remove("a.record"))

	files, err = store.ListFiles(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.record"}, files)
	assert.Equal(t, 2, inner.lists)
}

func TestCachedRemoveDirIfEmpty(t *testing.T) {
	t.Parallel()

	store := snapshot.Cached(snapshot.NewDirStore(t.TempDir()))

	write(t, store, "x/a.record", "a")

	dirs, err := store.ListDirs(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, dirs)

	// Still holds a file: kept.
	require.NoError(t, store.RemoveDirIfEmpty("x"))

	dirs, err = store.ListDirs(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, dirs)

	require.NoError(t, store.Remove("x/a.record"))
	require.NoError(t, store.RemoveDirIfEmpty("x"))

	dirs, err = store.ListDirs(".")
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestCachedIsIdempotent(t *testing.T) {
	t.Parallel()

	store := snapshot.Cached(snapshot.NewDirStore(t.TempDir()))

	assert.Same(t, store, snapshot.Cached(store))
}
