package gitlib

import (
	"fmt"
	"slices"

	git2go "github.com/libgit2/git2go/v34"
)

// ChangeAction represents the type of change in a diff.
type ChangeAction int

const (
	// Insert indicates a new file was added.
	Insert ChangeAction = iota
	// Delete indicates a file was removed.
	Delete
	// Modify indicates a file was modified in place.
	Modify
	// Rename indicates a file moved, possibly with edits.
	Rename
)

// String returns the git name-status letter of the action.
func (a ChangeAction) String() string {
	switch a {
	case Insert:
		return "A"
	case Delete:
		return "D"
	case Modify:
		return "M"
	case Rename:
		return "R"
	}

	return "?"
}

// Change represents a single file change between two trees.
// From is empty for insertions and To is empty for deletions.
type Change struct {
	Action     ChangeAction
	From       string
	To         string
	Insertions int
	Deletions  int
}

// Lines returns insertions plus deletions.
func (c Change) Lines() int {
	return c.Insertions + c.Deletions
}

// Path returns the path the change is attributed to: the new path unless the file was deleted.
func (c Change) Path() string {
	if c.To != "" {
		return c.To
	}

	return c.From
}

// Changes is a collection of Change objects.
type Changes []Change

// Paths returns every path touched by the changes, both sides of renames included, sorted.
func (cs Changes) Paths() []string {
	seen := make(map[string]struct{}, len(cs)*2)

	for _, c := range cs {
		for _, p := range []string{c.From, c.To} {
			if p != "" {
				seen[p] = struct{}{}
			}
		}
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}

	slices.Sort(paths)

	return paths
}

// TreeDiff computes the changes between two trees with rename detection.
// A nil tree stands for the empty tree. Line counts are filled when lines is true.
func TreeDiff(repo *Repository, oldTree, newTree *Tree, lines bool) (Changes, error) {
	if oldTree != nil && newTree != nil && oldTree.Hash() == newTree.Hash() {
		return Changes{}, nil
	}

	diff, err := repo.DiffTreeToTree(oldTree, newTree, true)
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	return collectChanges(diff, lines)
}

// WorkdirDiff computes the changes between a tree and the repository's working directory.
func WorkdirDiff(repo *Repository, oldTree *Tree, lines bool) (Changes, error) {
	diff, err := repo.DiffTreeToWorkdir(oldTree, true)
	if err != nil {
		return nil, err
	}
	defer diff.Free()

	return collectChanges(diff, lines)
}

func collectChanges(diff *Diff, lines bool) (Changes, error) {
	var stats []LineStat

	if lines {
		var err error

		stats, err = diff.LineStats()
		if err != nil {
			return nil, err
		}
	} else {
		deltas, err := diff.Deltas()
		if err != nil {
			return nil, fmt.Errorf("collect deltas: %w", err)
		}

		for _, d := range deltas {
			stats = append(stats, LineStat{Delta: d})
		}
	}

	changes := make(Changes, 0, len(stats))

	for _, s := range stats {
		change, ok := changeFromDelta(s.Delta)
		if !ok {
			continue
		}

		change.Insertions = s.Insertions
		change.Deletions = s.Deletions
		changes = append(changes, change)
	}

	return changes, nil
}

func changeFromDelta(delta DiffDelta) (Change, bool) {
	switch delta.Status {
	case git2go.DeltaAdded, git2go.DeltaUntracked, git2go.DeltaCopied:
		return Change{Action: Insert, To: delta.NewFile.Path}, true
	case git2go.DeltaDeleted:
		return Change{Action: Delete, From: delta.OldFile.Path}, true
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		return Change{Action: Modify, From: delta.OldFile.Path, To: delta.NewFile.Path}, true
	case git2go.DeltaRenamed:
		return Change{Action: Rename, From: delta.OldFile.Path, To: delta.NewFile.Path}, true
	case git2go.DeltaUnmodified, git2go.DeltaIgnored, git2go.DeltaUnreadable, git2go.DeltaConflicted:
	}

	return Change{}, false
}

// Change converts the delta into a Change. ok is false for entries that carry
// no change, such as unmodified or conflicted ones.
func (d DiffDelta) Change() (Change, bool) {
	return changeFromDelta(d)
}
