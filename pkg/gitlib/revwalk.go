package gitlib

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// RevWalk wraps a libgit2 revision walker.
type RevWalk struct {
	walk *git2go.RevWalk
	repo *Repository
}

// Push adds a commit to start walking from.
func (w *RevWalk) Push(hash Hash) error {
	err := w.walk.Push(hash.ToOid())
	if err != nil {
		return fmt.Errorf("push to revwalk: %w", err)
	}

	return nil
}

// PushHead adds HEAD to start walking from.
func (w *RevWalk) PushHead() error {
	head, err := w.repo.Head()
	if err != nil {
		return err
	}

	return w.Push(head)
}

// Hide excludes a commit and its ancestors from the walk.
func (w *RevWalk) Hide(hash Hash) error {
	err := w.walk.Hide(hash.ToOid())
	if err != nil {
		return fmt.Errorf("hide in revwalk: %w", err)
	}

	return nil
}

// Sorting sets the sorting mode for the walker.
func (w *RevWalk) Sorting(mode git2go.SortType) {
	w.walk.Sorting(mode)
}

// FirstParent restricts the walk to first parents.
func (w *RevWalk) FirstParent() {
	w.walk.SimplifyFirstParent()
}

// Next returns the next commit hash in the walk, or io.EOF when the walk is done.
func (w *RevWalk) Next() (Hash, error) {
	oid := new(git2go.Oid)

	err := w.walk.Next(oid)
	if git2go.IsErrorCode(err, git2go.ErrorCodeIterOver) {
		return Hash{}, io.EOF
	}

	if err != nil {
		return Hash{}, fmt.Errorf("revwalk next: %w", err)
	}

	return HashFromOid(oid), nil
}

// Iterate calls the callback for each commit in the walk until it returns false.
func (w *RevWalk) Iterate(cb func(*Commit) bool) error {
	err := w.walk.Iterate(func(commit *git2go.Commit) bool {
		return cb(&Commit{commit: commit, repo: w.repo})
	})
	if err != nil {
		return fmt.Errorf("revwalk iterate: %w", err)
	}

	return nil
}

// Free releases the walker resources.
func (w *RevWalk) Free() {
	if w.walk != nil {
		w.walk.Free()
		w.walk = nil
	}
}

// CommitRange resolves a range expression into first-parent commits, oldest first.
// "A..B" selects commits reachable from B but not from A, "A" selects A and its
// ancestors, and an empty expression means HEAD.
func (r *Repository) CommitRange(spec string) ([]Hash, error) {
	from, to, isRange := strings.Cut(spec, "..")
	if !isRange {
		to, from = spec, ""
	}

	if to == "" {
		to = "HEAD"
	}

	tip, err := r.Resolve(to)
	if err != nil {
		return nil, err
	}

	walk, err := r.Walk()
	if err != nil {
		return nil, err
	}
	defer walk.Free()

	walk.Sorting(git2go.SortTopological)
	walk.FirstParent()

	err = walk.Push(tip)
	if err != nil {
		return nil, err
	}

	if from != "" {
		base, resolveErr := r.Resolve(from)
		if resolveErr != nil {
			return nil, resolveErr
		}

		err = walk.Hide(base)
		if err != nil {
			return nil, err
		}
	}

	var hashes []Hash

	for {
		h, nextErr := walk.Next()
		if errors.Is(nextErr, io.EOF) {
			break
		}

		if nextErr != nil {
			return nil, nextErr
		}

		hashes = append(hashes, h)
	}

	slices.Reverse(hashes)

	return hashes, nil
}
