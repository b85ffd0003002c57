package gitlib_test

import (
	"os"
	"path/filepath"
	"testing"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treestat/pkg/gitlib"
	"github.com/Sumatoshi-tech/treestat/pkg/gitlib/gittest"
)

// Repository Tests.

func TestOpenRepositoryNotFound(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.OpenRepository(filepath.Join(t.TempDir(), "missing"))

	assert.Nil(t, repo)
	assert.Error(t, err)
}

func TestRepositoryHead(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "x = 1\n")
	hash := tr.Commit("init")

	repo := tr.Open()

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, hash, head)

	hasHead, err := repo.HasHead()
	require.NoError(t, err)
	assert.True(t, hasHead)
	assert.NotEmpty(t, repo.WorkDir())
}

func TestHasHeadUnborn(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.InitRepository(t.TempDir(), true)
	require.NoError(t, err)

	defer repo.Free()

	hasHead, err := repo.HasHead()
	require.NoError(t, err)
	assert.False(t, hasHead)
	assert.True(t, repo.IsBare())
	assert.Empty(t, repo.WorkDir())
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n")
	first := tr.Commit("first")
	tr.WriteFile("a.py", "2\n")
	second := tr.Commit("second")

	repo := tr.Open()

	got, err := repo.Resolve("HEAD~1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	got, err = repo.Resolve(second.String())
	require.NoError(t, err)
	assert.Equal(t, second, got)

	_, err = repo.Resolve("no-such-branch")
	assert.ErrorIs(t, err, gitlib.ErrRevisionNotFound)
}

// Commit Tests.

func TestCommitMetadata(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n")
	first := tr.Commit("first")
	tr.WriteFile("a.py", "2\n")
	second := tr.Commit("second\n\nbody")

	repo := tr.Open()

	commit, err := repo.LookupCommit(second)
	require.NoError(t, err)

	defer commit.Free()

	assert.Equal(t, "second\n\nbody", commit.Message())
	assert.Equal(t, "second", commit.FirstToken())
	assert.Equal(t, gittest.Author.Name, commit.Author().Name)
	assert.Equal(t, gittest.Author.Email, commit.Committer().Email)
	assert.Equal(t, 1, commit.NumParents())
	assert.Equal(t, first, commit.ParentHash(0))

	parentTree, err := commit.ParentTree()
	require.NoError(t, err)

	defer parentTree.Free()

	data, ok, err := parentTree.ReadFile("a.py")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1\n", string(data))
}

func TestCommitParentNotFound(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("only.txt", "x")
	hash := tr.Commit("only commit")

	repo := tr.Open()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	parent, err := commit.Parent(0)
	assert.Nil(t, parent)
	require.ErrorIs(t, err, gitlib.ErrParentNotFound)

	tree, err := commit.ParentTree()
	require.NoError(t, err)
	assert.Nil(t, tree)
	assert.True(t, commit.ParentHash(0).IsZero())
}

func TestFirstToken(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", gitlib.FirstToken("abc\nmessage"))
	assert.Equal(t, "[ignore]", gitlib.FirstToken("[ignore] abc"))
	assert.Empty(t, gitlib.FirstToken("  "))
}

// Tree Tests.

func TestTreeReadFile(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("sub/deep/file.txt", "nested")
	hash := tr.Commit("add nested")

	repo := tr.Open()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	tree, err := commit.Tree()
	require.NoError(t, err)

	defer tree.Free()

	data, ok, err := tree.ReadFile("sub/deep/file.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "nested", string(data))

	_, ok, err = tree.ReadFile("sub/missing.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = tree.ReadFile("sub")
	require.NoError(t, err)
	assert.False(t, ok)

	entry, err := tree.EntryByPath("sub/deep/file.txt")
	require.NoError(t, err)
	assert.Equal(t, "file.txt", entry.Name())
	assert.True(t, entry.IsBlob())
	assert.Equal(t, git2go.ObjectBlob, entry.Type())
}

// Diff Tests.

func TestTreeDiffWithLines(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("keep.py", "a\nb\nc\n")
	tr.WriteFile("gone.py", "x\n")
	tr.WriteFile("moved.py", "one\ntwo\nthree\nfour\nfive\n")
	first := tr.Commit("first")

	tr.WriteFile("keep.py", "a\nB\nc\nd\n")
	tr.DeleteFile("gone.py")
	tr.Rename("moved.py", "pkg/moved.py")
	tr.WriteFile("new.py", "1\n2\n3\n")
	second := tr.Commit("second")

	repo := tr.Open()
	oldTree, newTree := commitTree(t, repo, first), commitTree(t, repo, second)

	changes, err := gitlib.TreeDiff(repo, oldTree, newTree, true)
	require.NoError(t, err)

	byPath := make(map[string]gitlib.Change)
	for _, c := range changes {
		byPath[c.Path()] = c
	}

	require.Len(t, byPath, 4)

	assert.Equal(t, gitlib.Modify, byPath["keep.py"].Action)
	assert.Equal(t, 2, byPath["keep.py"].Insertions)
	assert.Equal(t, 1, byPath["keep.py"].Deletions)
	assert.Equal(t, 3, byPath["keep.py"].Lines())

	assert.Equal(t, gitlib.Delete, byPath["gone.py"].Action)
	assert.Equal(t, 1, byPath["gone.py"].Deletions)

	assert.Equal(t, gitlib.Rename, byPath["pkg/moved.py"].Action)
	assert.Equal(t, "moved.py", byPath["pkg/moved.py"].From)

	assert.Equal(t, gitlib.Insert, byPath["new.py"].Action)
	assert.Equal(t, 3, byPath["new.py"].Insertions)

	assert.Equal(t,
		[]string{"gone.py", "keep.py", "moved.py", "new.py", "pkg/moved.py"},
		changes.Paths())
}

func TestTreeDiffFromEmptyTree(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n2\n")
	hash := tr.Commit("first")

	repo := tr.Open()

	changes, err := gitlib.TreeDiff(repo, nil, commitTree(t, repo, hash), true)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	assert.Equal(t, gitlib.Insert, changes[0].Action)
	assert.Equal(t, "a.py", changes[0].To)
	assert.Equal(t, 2, changes[0].Insertions)
}

func TestTreeDiffSameTree(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n")
	hash := tr.Commit("first")

	repo := tr.Open()
	tree := commitTree(t, repo, hash)

	changes, err := gitlib.TreeDiff(repo, tree, tree, false)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestWorkdirDiff(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n")
	hash := tr.Commit("first")
	tr.WriteFile("a.py", "1\n2\n")

	repo := tr.Open()

	changes, err := gitlib.WorkdirDiff(repo, commitTree(t, repo, hash), true)
	require.NoError(t, err)
	require.Len(t, changes, 1)

	assert.Equal(t, "a.py", changes[0].Path())
	assert.Equal(t, 1, changes[0].Insertions)
}

func TestChangeActionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "A", gitlib.Insert.String())
	assert.Equal(t, "D", gitlib.Delete.String())
	assert.Equal(t, "M", gitlib.Modify.String())
	assert.Equal(t, "R", gitlib.Rename.String())
}

// RevWalk Tests.

func TestCommitRange(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)

	var hashes []gitlib.Hash

	for _, content := range []string{"1", "2", "3", "4"} {
		tr.WriteFile("a.py", content)
		hashes = append(hashes, tr.Commit("c"+content))
	}

	repo := tr.Open()

	all, err := repo.CommitRange("")
	require.NoError(t, err)
	assert.Equal(t, hashes, all)

	tail, err := repo.CommitRange("HEAD~2..HEAD")
	require.NoError(t, err)
	assert.Equal(t, hashes[2:], tail)

	upTo, err := repo.CommitRange(hashes[1].String())
	require.NoError(t, err)
	assert.Equal(t, hashes[:2], upTo)

	_, err = repo.CommitRange("nope..HEAD")
	assert.ErrorIs(t, err, gitlib.ErrRevisionNotFound)
}

// Index Tests.

func TestInMemoryIndexCommit(t *testing.T) {
	t.Parallel()

	repo, err := gitlib.InitRepository(t.TempDir(), true)
	require.NoError(t, err)

	defer repo.Free()

	index, err := gitlib.NewIndex(repo)
	require.NoError(t, err)

	defer index.Free()

	require.NoError(t, index.AddBlob("dir/a.record", []byte("stats:\n    lines: 5\n")))
	require.NoError(t, index.AddBlob("TOTAL", []byte("x")))
	require.NoError(t, index.Remove("not-staged"))
	assert.Equal(t, 2, index.Len())

	data, ok, err := index.Read("dir/a.record")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "stats:\n    lines: 5\n", string(data))

	entries, err := index.Entries("dir/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dir/a.record", entries[0].Path)

	require.NoError(t, index.Remove("TOTAL"))

	treeHash, err := index.WriteTree()
	require.NoError(t, err)

	commitHash, err := repo.CreateCommit(treeHash, gittest.Author, gittest.Author, "msg")
	require.NoError(t, err)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, commitHash, head)

	commit, err := repo.LookupCommit(commitHash)
	require.NoError(t, err)

	defer commit.Free()

	assert.Equal(t, treeHash, commit.TreeHash())
	assert.Equal(t, gittest.Author.When.Unix(), commit.Author().When.Unix())
}

func TestSetHead(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n")
	first := tr.Commit("first")
	tr.WriteFile("a.py", "2\n")
	tr.Commit("second")

	repo := tr.Open()

	require.NoError(t, repo.SetHead(first))

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, first, head)
}

// WorkCopy Tests.

func TestWorkCopyCheckout(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n")
	tr.WriteFile("old/b.py", "b\n")
	first := tr.Commit("first")
	tr.DeleteFile("old/b.py")
	tr.WriteFile("c.py", "c\n")
	second := tr.Commit("second")

	source := tr.Open()

	wc, err := gitlib.NewWorkCopy(source, "")
	require.NoError(t, err)

	dir := wc.Dir()

	require.NoError(t, wc.Checkout(first))
	assert.FileExists(t, filepath.Join(dir, "old", "b.py"))
	assert.NoFileExists(t, filepath.Join(dir, "c.py"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.py"), []byte("x"), 0o644))

	require.NoError(t, wc.Checkout(second))
	assert.NoFileExists(t, filepath.Join(dir, "old", "b.py"))
	assert.NoFileExists(t, filepath.Join(dir, "stray.py"))
	assert.FileExists(t, filepath.Join(dir, "c.py"))

	require.NoError(t, wc.CheckoutEmpty())
	assert.NoFileExists(t, filepath.Join(dir, "a.py"))

	// The source checkout is untouched.
	assert.FileExists(t, filepath.Join(tr.Path, "c.py"))

	require.NoError(t, wc.Close())
	assert.NoDirExists(t, dir)
}

func TestWorkCopyUnknownCommit(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("a.py", "1\n")
	tr.Commit("first")

	wc, err := gitlib.NewWorkCopy(tr.Open(), "")
	require.NoError(t, err)

	defer wc.Close()

	err = wc.Checkout(gitlib.NewHash("1234567890123456789012345678901234567890"))
	assert.ErrorIs(t, err, gitlib.ErrRevisionNotFound)
}

func TestIsRemoteURI(t *testing.T) {
	t.Parallel()

	assert.True(t, gitlib.IsRemoteURI("https://github.com/x/y"))
	assert.True(t, gitlib.IsRemoteURI("git@github.com:x/y.git"))
	assert.False(t, gitlib.IsRemoteURI("/tmp/repo"))
	assert.False(t, gitlib.IsRemoteURI("./repo"))
}

func commitTree(t *testing.T, repo *gitlib.Repository, hash gitlib.Hash) *gitlib.Tree {
	t.Helper()

	commit, err := repo.LookupCommit(hash)
	require.NoError(t, err)

	defer commit.Free()

	tree, err := commit.Tree()
	require.NoError(t, err)

	t.Cleanup(tree.Free)

	return tree
}

func TestDiscoverRepository(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.WriteFile("pkg/a.py", "x = 1\n")
	tr.Commit("init")

	repo, err := gitlib.DiscoverRepository(filepath.Join(tr.Path, "pkg"))
	require.NoError(t, err)

	defer repo.Free()

	want, err := filepath.EvalSymlinks(tr.Path)
	require.NoError(t, err)

	got, err := filepath.EvalSymlinks(repo.WorkDir())
	require.NoError(t, err)

	assert.Equal(t, want, got)

	_, err = gitlib.DiscoverRepository(t.TempDir())
	require.Error(t, err)
}
