// Package analyzer produces per-file metric records.
//
// An Analyzer turns the content of one source file into a statvalue.Value and
// the list of its functions with their complexity grades. Implementations are
// deterministic and side-effect free, so callers may run them in parallel.
package analyzer

import (
	"context"
	"errors"

	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// ErrAnalysisFailed marks content the analyzer could not process. Callers skip
// the file and keep going.
var ErrAnalysisFailed = errors.New("analysis failed")

// Metric categories written by the tree-sitter analyzer.
const (
	CategoryComplexity = "complexity"
	CategoryGrades     = "grades"
	CategoryHalstead   = "halstead"
	CategoryStats      = "stats"
)

// Grades lists the complexity grades from best to worst.
var Grades = []string{"A", "B", "C", "D", "E", "F"}

// Result is the analysis of one file.
type Result struct {
	Value   statvalue.Value
	Methods []statvalue.Method
}

// Analyzer analyzes one file.
type Analyzer interface {
	// Analyze returns the metrics of content. path is relative to the source
	// root and only used for language selection. Failures wrap ErrAnalysisFailed.
	Analyze(ctx context.Context, path string, content []byte) (Result, error)
}

// Func adapts a function to the Analyzer interface.
type Func func(ctx context.Context, path string, content []byte) (Result, error)

// Analyze calls f.
func (f Func) Analyze(ctx context.Context, path string, content []byte) (Result, error) {
	return f(ctx, path, content)
}

// Grade ranks a cyclomatic complexity: A 1-5, B 6-10, C 11-20, D 21-30,
// E 31-40, F above.
func Grade(complexity int) string {
	switch {
	case complexity <= 5:
		return "A"
	case complexity <= 10:
		return "B"
	case complexity <= 20:
		return "C"
	case complexity <= 30:
		return "D"
	case complexity <= 40:
		return "E"
	default:
		return "F"
	}
}
