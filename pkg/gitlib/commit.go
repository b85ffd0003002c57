package gitlib

import (
	"errors"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/treestat/pkg/safeconv"
)

// ErrParentNotFound is returned when the requested parent commit is not found.
var ErrParentNotFound = errors.New("parent commit not found")

// Commit wraps a libgit2 commit.
type Commit struct {
	commit *git2go.Commit
	repo   *Repository
}

// Hash returns the commit hash.
func (c *Commit) Hash() Hash {
	return HashFromOid(c.commit.Id())
}

// Author returns the commit author.
func (c *Commit) Author() Signature {
	return signatureFromNative(c.commit.Author())
}

// Committer returns the commit committer.
func (c *Commit) Committer() Signature {
	return signatureFromNative(c.commit.Committer())
}

// Message returns the commit message.
func (c *Commit) Message() string {
	return c.commit.Message()
}

// FirstToken returns the first whitespace-delimited token of the message.
func (c *Commit) FirstToken() string {
	return FirstToken(c.commit.Message())
}

// FirstToken returns the first whitespace-delimited token of a commit message.
func FirstToken(message string) string {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}

// NumParents returns the number of parent commits.
func (c *Commit) NumParents() int {
	return safeconv.MustUintToInt(c.commit.ParentCount())
}

// Parent returns the nth parent commit.
func (c *Commit) Parent(n int) (*Commit, error) {
	parent := c.commit.Parent(safeconv.MustIntToUint(n))
	if parent == nil {
		return nil, ErrParentNotFound
	}

	return &Commit{commit: parent, repo: c.repo}, nil
}

// ParentHash returns the hash of the nth parent, or the zero hash.
func (c *Commit) ParentHash(n int) Hash {
	oid := c.commit.ParentId(safeconv.MustIntToUint(n))
	if oid == nil {
		return Hash{}
	}

	return HashFromOid(oid)
}

// Tree returns the tree associated with this commit.
func (c *Commit) Tree() (*Tree, error) {
	tree, err := c.commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("get commit tree: %w", err)
	}

	return &Tree{tree: tree, repo: c.repo}, nil
}

// TreeHash returns the hash of the commit's tree.
func (c *Commit) TreeHash() Hash {
	return HashFromOid(c.commit.TreeId())
}

// ParentTree returns the tree of the first parent, or nil for root commits.
func (c *Commit) ParentTree() (*Tree, error) {
	if c.NumParents() == 0 {
		return nil, nil
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, err
	}
	defer parent.Free()

	return parent.Tree()
}

// Free releases the commit resources.
func (c *Commit) Free() {
	if c.commit != nil {
		c.commit.Free()
		c.commit = nil
	}
}
