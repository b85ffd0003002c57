package snapshot_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
)

var backends = []string{snapshot.BackendIndex, snapshot.BackendWorktree}

func openStore(t *testing.T, backend string) (snapshot.Store, string) {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "store")

	store, err := snapshot.Open(dir, backend)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store, dir
}

func write(t *testing.T, store snapshot.Store, path, content string) {
	t.Helper()

	require.NoError(t, snapshot.WriteFile(store, path, []byte(content)))
}

func TestStoreWorkingState(t *testing.T) {
	t.Parallel()

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			store, _ := openStore(t, backend)

			write(t, store, "a.py.record", "a")
			write(t, store, "pkg/b.py.record", "b")
			write(t, store, "pkg/sub/c.py.record", "c")
			write(t, store, "TOTAL", "t")

			files, err := store.ListFiles(".")
			require.NoError(t, err)
			assert.Equal(t, []string{"TOTAL", "a.py.record"}, files)

			dirs, err := store.ListDirs(".")
			require.NoError(t, err)
			assert.Equal(t, []string{"pkg"}, dirs)

			dirs, err = store.ListDirs("pkg")
			require.NoError(t, err)
			assert.Equal(t, []string{"sub"}, dirs)

			data, ok, err := store.Read("pkg/sub/c.py.record")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "c", string(data))

			_, ok, err = store.Read("missing.record")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Remove("pkg/sub/c.py.record"))
			require.NoError(t, store.Remove("never-written"))
			require.NoError(t, store.RemoveDirIfEmpty("pkg/sub"))

			dirs, err = store.ListDirs("pkg")
			require.NoError(t, err)
			assert.Empty(t, dirs)

			files, err = store.ListFiles("pkg/sub")
			require.NoError(t, err)
			assert.Empty(t, files)
		})
	}
}

func TestStoreCommitAndHistory(t *testing.T) {
	t.Parallel()

	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			store, dir := openStore(t, backend)
			ctx := context.Background()

			_, ok, err := store.HeadMessage()
			require.NoError(t, err)
			assert.False(t, ok)

			author := gitlib.Signature{Name: "Dev", Email: "dev@example.com", When: time.Unix(1700000000, 0)}

			write(t, store, "a.py.record", "1")
			first, err := store.Commit(ctx, snapshot.CommitRequest{Message: "aaa\nfirst", Author: author})
			require.NoError(t, err)

			write(t, store, "a.py.record", "2")
			_, err = store.Commit(ctx, snapshot.CommitRequest{Message: snapshot.IgnoreMessage("bbb")})
			require.NoError(t, err)

			write(t, store, "a.py.record", "3")
			third, err := store.Commit(ctx, snapshot.CommitRequest{Message: "bbb\nsecond", Author: author})
			require.NoError(t, err)

			message, ok, err := store.HeadMessage()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "bbb\nsecond", message)

			got, ok, err := store.ResolveSourceRevision("aaa")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, first, got)

			_, ok, err = store.ResolveSourceRevision("zzz")
			require.NoError(t, err)
			assert.False(t, ok)

			provenance, err := store.Provenance()
			require.NoError(t, err)
			assert.Equal(t, map[string]gitlib.Hash{"aaa": first, "bbb": third}, provenance)

			// Unchanged state yields the head when asked to skip.
			same, err := store.Commit(ctx, snapshot.CommitRequest{Message: "noop", SkipUnchanged: true})
			require.NoError(t, err)
			assert.Equal(t, third, same)

			commit, err := store.Repository().LookupCommit(third)
			require.NoError(t, err)
			assert.Equal(t, "Dev", commit.Author().Name)
			assert.Equal(t, "Dev", commit.Committer().Name)
			commit.Free()

			require.NoError(t, store.ResetTo(first))

			data, _, err := store.Read("a.py.record")
			require.NoError(t, err)
			assert.Equal(t, "1", string(data))

			// A reopened store continues from the committed head.
			require.NoError(t, store.Close())

			reopened, err := snapshot.Open(dir, backend)
			require.NoError(t, err)

			defer reopened.Close()

			data, ok, err = reopened.Read("a.py.record")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "1", string(data))
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := snapshot.Open(t.TempDir(), "sqlite")
	assert.ErrorIs(t, err, snapshot.ErrUnknownBackend)
}

func TestDirStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := snapshot.NewDirStore(dir)

	write(t, store, "pkg/a.py.record", "a")
	assert.FileExists(t, filepath.Join(dir, "pkg", "a.py.record"))

	require.NoError(t, store.Remove("pkg/a.py.record"))
	require.NoError(t, store.RemoveDirIfEmpty("pkg"))
	assert.NoDirExists(t, filepath.Join(dir, "pkg"))

	_, err := store.Commit(context.Background(), snapshot.CommitRequest{Message: "x"})
	require.ErrorIs(t, err, snapshot.ErrCommitUnsupported)
	require.ErrorIs(t, store.ResetTo(gitlib.Hash{}), snapshot.ErrCommitUnsupported)
	assert.Nil(t, store.Repository())
}

func TestLayout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a.py", snapshot.Join(".", "a.py"))
	assert.Equal(t, "pkg/a.py", snapshot.Join("pkg", "a.py"))
	assert.Equal(t, ".", snapshot.Dir("a.py"))
	assert.Equal(t, 0, snapshot.Depth("."))
	assert.Equal(t, 2, snapshot.Depth("a/b"))
	assert.Equal(t, "SUBTREE_TOTAL_TEST", snapshot.Subtree(snapshot.TotalTest))
	assert.True(t, snapshot.IsAggregate("SUBTREE_TOTAL_NON_TEST"))
	assert.True(t, snapshot.IsAggregate("TOTAL"))
	assert.False(t, snapshot.IsAggregate("a.py.record"))
	assert.True(t, snapshot.IsIgnoreMessage("[ignore] abc"))
}
