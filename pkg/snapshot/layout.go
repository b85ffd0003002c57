package snapshot

import (
	"path"
	"strings"
)

// Record file suffixes.
const (
	RecordSuffix  = ".record"
	MethodsSuffix = ".methods"
)

// Aggregate record names stored in every directory that has data.
const (
	Total        = "TOTAL"
	TotalTest    = "TOTAL_TEST"
	TotalNonTest = "TOTAL_NON_TEST"

	SubtreeTotal        = "SUBTREE_TOTAL"
	SubtreeTotalTest    = "SUBTREE_TOTAL_TEST"
	SubtreeTotalNonTest = "SUBTREE_TOTAL_NON_TEST"

	subtreePrefix = "SUBTREE_"
)

// Change manifest names stored at the snapshot root.
const (
	LatestChanges      = "LATEST_CHANGES"
	LatestChangesTotal = "LATEST_CHANGES_TOTAL"
)

// IgnorePrefix marks catch-up commits that reporting skips.
const IgnorePrefix = "[ignore]"

// Root is the name of the top directory.
const Root = "."

// DirectoryAggregates lists the per-directory totals in storage order.
var DirectoryAggregates = []string{Total, TotalTest, TotalNonTest}

// Subtree returns the subtree aggregate name for a directory aggregate name.
func Subtree(name string) string {
	return subtreePrefix + name
}

// IsAggregate reports whether base is the name of a directory or subtree aggregate.
func IsAggregate(base string) bool {
	switch strings.TrimPrefix(base, subtreePrefix) {
	case Total, TotalTest, TotalNonTest:
		return true
	}

	return false
}

// RecordPath returns the record path of a source file.
func RecordPath(source string) string {
	return source + RecordSuffix
}

// MethodsPath returns the methods path of a source file.
func MethodsPath(source string) string {
	return source + MethodsSuffix
}

// Join joins a directory and a name, treating Root as empty.
func Join(dir, name string) string {
	if dir == "" || dir == Root {
		return name
	}

	return dir + "/" + name
}

// Dir returns the directory part of p, Root for top-level entries.
func Dir(p string) string {
	return path.Dir(p)
}

// Depth returns the number of path segments below Root.
func Depth(dir string) int {
	if dir == "" || dir == Root {
		return 0
	}

	return strings.Count(dir, "/") + 1
}

// IsIgnoreMessage reports whether a commit message marks a catch-up commit.
func IsIgnoreMessage(message string) bool {
	return strings.HasPrefix(message, IgnorePrefix)
}

// IgnoreMessage builds the message of a catch-up commit.
func IgnoreMessage(label string) string {
	return IgnorePrefix + " " + label
}
