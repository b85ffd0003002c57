package delta

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/treestat/pkg/analyzer"
	"github.com/Sumatoshi-tech/treestat/pkg/statvalue"
)

// DefaultScores is the default per-grade cruft weighting.
const DefaultScores = "0,1,2,4,8,16"

// ErrInvalidScores is returned for a malformed score list.
var ErrInvalidScores = errors.New("invalid cruft scores")

// Scores weight each grade's lines in the cruft score.
type Scores map[string]float64

// ParseScores parses comma-separated weights for grades A to F.
func ParseScores(s string) (Scores, error) {
	fields := strings.Split(s, ",")
	if len(fields) != len(analyzer.Grades) {
		return nil, fmt.Errorf("%w: want %d values, got %d", ErrInvalidScores, len(analyzer.Grades), len(fields))
	}

	scores := make(Scores, len(fields))

	for i, field := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidScores, field)
		}

		scores[analyzer.Grades[i]] = n
	}

	return scores, nil
}

// MustParseScores is like ParseScores but panics on error.
func MustParseScores(s string) Scores {
	scores, err := ParseScores(s)
	if err != nil {
		panic(err)
	}

	return scores
}

// String renders the scores in grade order.
func (s Scores) String() string {
	parts := make([]string, 0, len(analyzer.Grades))
	for _, g := range analyzer.Grades {
		parts = append(parts, statvalue.FormatNumber(s[g]))
	}

	return strings.Join(parts, ",")
}

// Cruft weighs the grade lines of v by scores.
func Cruft(v statvalue.Value, scores Scores) float64 {
	total := 0.0

	for _, g := range analyzer.Grades {
		total += v.Get(analyzer.CategoryGrades, g) * scores[g]
	}

	return total
}
