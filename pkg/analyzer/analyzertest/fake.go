// Package analyzertest provides a deterministic Analyzer for tests.
package analyzertest

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
	"github.com/Sumatoshi-tech/treestat/pkg/textutil"
)

// FailMarker makes the fake fail on content that starts with it.
const FailMarker = "#!fail"

// Fake reports the line count of a file as stats.lines, one function named
// after the file with grade A, and grades.A equal to the line count.
type Fake struct {
	mu    sync.Mutex
	calls []string
}

var _ analyzer.Analyzer = (*Fake)(nil)

// New returns a fake analyzer.
func New() *Fake {
	return &Fake{}
}

// Analyze implements analyzer.Analyzer.
func (f *Fake) Analyze(ctx context.Context, p string, content []byte) (analyzer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return analyzer.Result{}, fmt.Errorf("%w: %w", analyzer.ErrAnalysisFailed, err)
	}

	if bytes.HasPrefix(content, []byte(FailMarker)) {
		return analyzer.Result{}, fmt.Errorf("%w: %s", analyzer.ErrAnalysisFailed, p)
	}

	n := Lines(content)

	return analyzer.Result{
		Value:   Value(n),
		Methods: []statvalue.Method{{Name: strings.TrimSuffix(path.Base(p), path.Ext(p)), Grade: "A", Lines: n}},
	}, nil
}

// Calls returns the analyzed paths in sorted order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Sorted(slices.Values(f.calls))
}

// Reset forgets recorded calls.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Lines counts the lines of content.
func Lines(content []byte) int {
	return textutil.CountLines(content)
}

// Value is the record the fake produces for a file of n lines.
func Value(n int) statvalue.Value {
	return statvalue.FromNested(map[string]map[string]float64{
		analyzer.CategoryGrades: {"A": float64(n)},
		analyzer.CategoryStats:  {"functions": 1, "lines": float64(n)},
	})
}
