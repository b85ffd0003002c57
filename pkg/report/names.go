// Package report renders delta records for terminals, spreadsheets and browsers.
package report

import (
	"regexp"
	"strings"

	"github.com/Sumatoshi-tech/treestat/pkg/delta"
)

// Name relabels records whose snapshot path matches Pattern.
type Name struct {
	Pattern *regexp.Regexp
	Label   string
}

// Names is an ordered list of relabeling rules. The first match wins.
type Names []Name

// DefaultNames labels the root test and non-test subtree partitions.
func DefaultNames() Names {
	return Names{
		{Pattern: regexp.MustCompile(`^SUBTREE_TOTAL_TEST`), Label: "TEST CODE"},
		{Pattern: regexp.MustCompile(`^SUBTREE_TOTAL_NON_TEST`), Label: "NON-TEST CODE"},
	}
}

// Label returns the display name of a record.
func (n Names) Label(rec delta.Record) string {
	for _, name := range n {
		if name.Pattern.MatchString(rec.Path) {
			return name.Label
		}
	}

	return rec.Source
}

// Artifact is the dotted module-style name of a record.
func Artifact(rec delta.Record) string {
	return strings.ReplaceAll(rec.Source, "/", ".")
}

// Patterns returns the source expressions of the rules, in order.
func (n Names) Patterns() []string {
	patterns := make([]string, 0, len(n))
	for _, name := range n {
		patterns = append(patterns, name.Pattern.String())
	}

	return patterns
}
