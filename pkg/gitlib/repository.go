package gitlib

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrRevisionNotFound is returned when a revision expression does not resolve to a commit.
var ErrRevisionNotFound = errors.New("revision not found")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// DiscoverRepository opens the repository containing path, searching parent
// directories.
func DiscoverRepository(path string) (*Repository, error) {
	gitDir, err := git2go.Discover(path, false, nil)
	if err != nil {
		return nil, fmt.Errorf("discover repository: %w", err)
	}

	return OpenRepository(gitDir)
}

// InitRepository creates a new repository at path.
func InitRepository(path string, bare bool) (*Repository, error) {
	repo, err := git2go.InitRepository(path, bare)
	if err != nil {
		return nil, fmt.Errorf("init repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// Path returns the path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// GitDir returns the path of the repository's git directory.
func (r *Repository) GitDir() string {
	return filepath.Clean(r.repo.Path())
}

// WorkDir returns the working directory, or "" for bare repositories.
func (r *Repository) WorkDir() string {
	wd := r.repo.Workdir()
	if wd == "" {
		return ""
	}

	return filepath.Clean(wd)
}

// IsBare reports whether the repository has no working directory.
func (r *Repository) IsBare() bool {
	return r.repo.IsBare()
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the HEAD reference target.
func (r *Repository) Head() (Hash, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// HasHead reports whether HEAD points at a commit.
func (r *Repository) HasHead() (bool, error) {
	unborn, err := r.repo.IsHeadUnborn()
	if err != nil {
		return false, fmt.Errorf("check HEAD: %w", err)
	}

	return !unborn, nil
}

// SetHead moves the branch HEAD points to onto hash.
func (r *Repository) SetHead(hash Hash) error {
	ref, err := r.repo.Head()
	if err != nil {
		return r.createHeadBranch(hash)
	}
	defer ref.Free()

	moved, err := ref.SetTarget(hash.ToOid(), "reset")
	if err != nil {
		return fmt.Errorf("set HEAD: %w", err)
	}

	moved.Free()

	return nil
}

// createHeadBranch creates the branch an unborn HEAD points to.
func (r *Repository) createHeadBranch(hash Hash) error {
	head, err := r.repo.References.Lookup("HEAD")
	if err != nil {
		return fmt.Errorf("lookup HEAD: %w", err)
	}
	defer head.Free()

	branch, err := r.repo.References.Create(head.SymbolicTarget(), hash.ToOid(), true, "reset")
	if err != nil {
		return fmt.Errorf("create branch: %w", err)
	}

	branch.Free()

	return nil
}

// Resolve turns a revision expression such as "HEAD~1" or a sha into a commit hash.
func (r *Repository) Resolve(rev string) (Hash, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s", ErrRevisionNotFound, rev)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %s is not a commit", ErrRevisionNotFound, rev)
	}
	defer peeled.Free()

	return HashFromOid(peeled.Id()), nil
}

// LookupCommit returns the commit with the given hash.
func (r *Repository) LookupCommit(hash Hash) (*Commit, error) {
	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit: %w", err)
	}

	return &Commit{commit: commit, repo: r}, nil
}

// LookupBlob returns the blob with the given hash.
func (r *Repository) LookupBlob(hash Hash) (*Blob, error) {
	blob, err := r.repo.LookupBlob(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup blob: %w", err)
	}

	return &Blob{blob: blob}, nil
}

// LookupTree returns the tree with the given hash.
func (r *Repository) LookupTree(hash Hash) (*Tree, error) {
	tree, err := r.repo.LookupTree(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup tree: %w", err)
	}

	return &Tree{tree: tree, repo: r}, nil
}

// CreateBlob writes data to the object database.
func (r *Repository) CreateBlob(data []byte) (Hash, error) {
	oid, err := r.repo.CreateBlobFromBuffer(data)
	if err != nil {
		return Hash{}, fmt.Errorf("create blob: %w", err)
	}

	return HashFromOid(oid), nil
}

// CreateCommit records tree as a new commit on top of parents and moves HEAD to it.
func (r *Repository) CreateCommit(tree Hash, author, committer Signature, message string, parents ...Hash) (Hash, error) {
	nativeTree, err := r.repo.LookupTree(tree.ToOid())
	if err != nil {
		return Hash{}, fmt.Errorf("lookup tree: %w", err)
	}
	defer nativeTree.Free()

	nativeParents := make([]*git2go.Commit, 0, len(parents))

	defer func() {
		for _, p := range nativeParents {
			p.Free()
		}
	}()

	for _, parent := range parents {
		p, lookupErr := r.repo.LookupCommit(parent.ToOid())
		if lookupErr != nil {
			return Hash{}, fmt.Errorf("lookup parent: %w", lookupErr)
		}

		nativeParents = append(nativeParents, p)
	}

	oid, err := r.repo.CreateCommit("HEAD", author.native(), committer.native(), message, nativeTree, nativeParents...)
	if err != nil {
		return Hash{}, fmt.Errorf("create commit: %w", err)
	}

	return HashFromOid(oid), nil
}

// CheckoutCommit forces the working directory and index to the tree of hash,
// removing untracked and ignored files. HEAD is left alone.
func (r *Repository) CheckoutCommit(hash Hash) error {
	commit, err := r.LookupCommit(hash)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrRevisionNotFound, hash)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return err
	}
	defer tree.Free()

	return r.checkoutTree(tree.tree)
}

func (r *Repository) checkoutTree(tree *git2go.Tree) error {
	opts := &git2go.CheckoutOptions{
		Strategy: git2go.CheckoutForce | git2go.CheckoutRemoveUntracked | git2go.CheckoutRemoveIgnored,
	}

	err := r.repo.CheckoutTree(tree, opts)
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	return nil
}

// Walk creates a new revision walker.
func (r *Repository) Walk() (*RevWalk, error) {
	walk, err := r.repo.Walk()
	if err != nil {
		return nil, fmt.Errorf("create revwalk: %w", err)
	}

	return &RevWalk{walk: walk, repo: r}, nil
}

// DiffTreeToTree computes the diff between two trees. A nil tree stands for the empty tree.
// Renames are detected when renames is true.
func (r *Repository) DiffTreeToTree(oldTree, newTree *Tree, renames bool) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree.native(), newTree.native(), &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	return finishDiff(diff, renames)
}

// DiffTreeToWorkdir diffs a tree against the working directory, including staged changes.
// Untracked files are not part of the diff.
func (r *Repository) DiffTreeToWorkdir(oldTree *Tree, renames bool) (*Diff, error) {
	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToWorkdirWithIndex(oldTree.native(), &opts)
	if err != nil {
		return nil, fmt.Errorf("diff workdir: %w", err)
	}

	return finishDiff(diff, renames)
}

func finishDiff(diff *git2go.Diff, renames bool) (*Diff, error) {
	if renames {
		findOpts, err := git2go.DefaultDiffFindOptions()
		if err != nil {
			freeErr := diff.Free()

			return nil, errors.Join(fmt.Errorf("get find options: %w", err), freeErr)
		}

		findOpts.Flags = git2go.DiffFindRenames

		err = diff.FindSimilar(&findOpts)
		if err != nil {
			freeErr := diff.Free()

			return nil, errors.Join(fmt.Errorf("find renames: %w", err), freeErr)
		}
	}

	return &Diff{diff: diff}, nil
}

// Native returns the underlying libgit2 repository for advanced operations.
func (r *Repository) Native() *git2go.Repository {
	return r.repo
}

// IsRemoteURI reports whether uri names a remote rather than a local path.
func IsRemoteURI(uri string) bool {
	if strings.Contains(uri, "://") {
		return true
	}

	at := strings.Index(uri, "@")
	colon := strings.Index(uri, ":")

	return at > 0 && colon > at
}
