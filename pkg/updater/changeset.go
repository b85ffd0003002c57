package updater

import (
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/treestat/pkg/pathmatch"
	"github.com/Sumatoshi-tech/treestat/pkg/snapshot"
)

// ChangeSet selects the source files an update considers.
type ChangeSet struct {
	all   bool
	paths []string
}

// All requests a full rescan.
func All() ChangeSet {
	return ChangeSet{all: true}
}

// Paths requests an update of the given relative paths. Paths that no longer
// exist have their records removed.
func Paths(paths ...string) ChangeSet {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, pathmatch.Clean(p))
	}

	slices.Sort(cleaned)

	return ChangeSet{paths: slices.Compact(cleaned)}
}

// IsAll reports whether c is a full rescan.
func (c ChangeSet) IsAll() bool {
	return c.all
}

// Paths returns the requested paths, nil for a full rescan.
func (c ChangeSet) Paths() []string {
	return slices.Clone(c.paths)
}

// Filters restrict which files are analyzed.
type Filters struct {
	// Paths are include prefixes. Empty admits every path.
	Paths []string
	// Ignore excludes paths matching any pattern.
	Ignore pathmatch.Matcher
}

func (f Filters) allows(p string) bool {
	return pathmatch.UnderAny(p, f.Paths) && !f.Ignore.Match(p)
}

// DirSet is a set of relative directory paths; the top directory is ".".
type DirSet map[string]struct{}

// Add inserts dir.
func (s DirSet) Add(dir string) {
	s[dir] = struct{}{}
}

// Has reports whether dir is in s.
func (s DirSet) Has(dir string) bool {
	_, ok := s[dir]

	return ok
}

// Sorted returns the members deepest first, the same order propagation uses.
func (s DirSet) Sorted() []string {
	dirs := slices.Collect(maps.Keys(s))
	slices.SortFunc(dirs, compareDepthFirst)

	return dirs
}

// compareDepthFirst orders deeper paths first, then longer ones, then lexicographically.
func compareDepthFirst(a, b string) int {
	if da, db := snapshot.Depth(a), snapshot.Depth(b); da != db {
		return db - da
	}

	if len(a) != len(b) {
		return len(b) - len(a)
	}

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}
