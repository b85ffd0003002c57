package analyzer

import (
	"bytes"
	"strings"
)

// span is the position range of a comment.
type span struct {
	startRow, startCol int
	endRow, endCol     int
}

// lineStats are raw line counts of one file.
type lineStats struct {
	loc      int
	sloc     int
	blank    int
	comments int

	// kinds holds one entry per line: lineBlank, lineComment or lineSource.
	kinds []lineKind
}

type lineKind uint8

const (
	lineSource lineKind = iota
	lineBlank
	lineComment
)

func analyzeLines(src []byte, comments []span) lineStats {
	text := string(src)
	text = strings.TrimSuffix(text, "\n")

	var lines []string
	if len(src) > 0 {
		lines = strings.Split(text, "\n")
	}

	stats := lineStats{loc: len(lines), kinds: make([]lineKind, len(lines))}

	commented := make(map[int]bool)
	commentOnly := make(map[int]bool)

	for _, c := range comments {
		for r := c.startRow; r <= c.endRow && r < len(lines); r++ {
			commented[r] = true

			line := strings.TrimRight(lines[r], " \t\r")
			first := len(line) - len(strings.TrimLeft(line, " \t"))

			switch {
			case r == c.startRow && first != c.startCol:
			case r == c.endRow && c.endCol < len(line):
			default:
				commentOnly[r] = true
			}
		}
	}

	for r, line := range lines {
		switch {
		case len(bytes.TrimSpace([]byte(line))) == 0:
			stats.kinds[r] = lineBlank
			stats.blank++
		case commentOnly[r]:
			stats.kinds[r] = lineComment
		default:
			stats.sloc++
		}
	}

	stats.comments = len(commented)

	return stats
}

// sourceLinesBetween counts source lines in the inclusive row range.
func (s lineStats) sourceLinesBetween(from, to int) int {
	n := 0

	for r := max(from, 0); r <= to && r < len(s.kinds); r++ {
		if s.kinds[r] == lineSource {
			n++
		}
	}

	return n
}
